package domain

import (
	"encoding/json"
	"testing"
)

func TestRouteIDRendersKnownTypes(t *testing.T) {
	cases := map[string]Route{
		"7":      {"id": json.Number("7")},
		"abc":    {"id": " abc "},
		"3":      {"id": 3},
		"":       {"name": "no id"},
		"nil-id": {"id": "nil-id"},
	}
	for want, r := range cases {
		if got := r.ID(); got != want {
			t.Errorf("ID() = %q, want %q", got, want)
		}
	}
	if got := (Route{"id": nil}).ID(); got != "" {
		t.Errorf("nil id should render empty, got %q", got)
	}
}

func TestRouteKeyFallsBackToContentHash(t *testing.T) {
	a := Route{"name": "Route A", "stops": []any{"x", "y"}}
	b := Route{"stops": []any{"x", "y"}, "name": "Route A"}
	if a.Key() == "" || a.Key() != b.Key() {
		t.Fatalf("equal records must share a key: %q vs %q", a.Key(), b.Key())
	}
	if c := (Route{"name": "Route C"}); c.Key() == a.Key() {
		t.Fatalf("different records must not share a key")
	}
	if got := (Route{"id": json.Number("9"), "name": "x"}).Key(); got != "9" {
		t.Fatalf("Key should prefer id, got %q", got)
	}
}
