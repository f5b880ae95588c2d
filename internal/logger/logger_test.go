package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZapLoggerWritesObjectField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := New(zap.New(core))

	log.InfoObj("routes fetched", "routes_meta", map[string]any{"count": 2})
	log.DebugObj("debug", "k", 1)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	meta, ok := fields["routes_meta"].(map[string]any)
	if !ok || meta["count"] != 2 {
		t.Fatalf("unexpected fields %#v", fields)
	}
}

func TestNewNilReturnsNop(t *testing.T) {
	if _, ok := New(nil).(*NopLogger); !ok {
		t.Fatalf("expected NopLogger for nil zap logger")
	}
}
