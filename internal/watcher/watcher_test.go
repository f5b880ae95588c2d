package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samvad-hq/rutas-relay/internal/domain"
	"github.com/samvad-hq/rutas-relay/pkg/publishers"
	"github.com/samvad-hq/rutas-relay/pkg/sources"
)

// fakeLister returns preset routes or an error.
type fakeLister struct {
	routes []domain.Route
	err    error
	calls  int
}

func (f *fakeLister) FetchAll(context.Context) ([]domain.Route, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.routes, nil
}

func listersByID(m map[string]*fakeLister) ListerFactory {
	return func(src sources.Source) RouteLister { return m[src.ID] }
}

// fakePublisher records published events and can inject errors.
type fakePublisher struct {
	mu        sync.Mutex
	events    []publishers.Event
	errOnKey  string
	delivered int
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if evt.RouteKey == f.errOnKey {
		return f.delivered, errors.New("boom")
	}
	return 1, nil
}

// fakeDeduper tracks seen keys.
type fakeDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	failKey string
	failErr error
}

func (f *fakeDeduper) SeenRoute(key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.failKey && f.failErr != nil {
		return false, f.failErr
	}
	return f.seen[key], nil
}

func (f *fakeDeduper) MarkRoute(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[key] = true
	return nil
}

func TestRunPublishesFreshRoutesOnly(t *testing.T) {
	src := sources.Source{ID: "s1", Name: "Source 1"}
	lister := &fakeLister{routes: []domain.Route{
		{"id": json.Number("1"), "name": "old"},
		{"id": json.Number("2"), "name": "new"},
		{"id": json.Number("2"), "name": "new"},
	}}
	deduper := &fakeDeduper{seen: map[string]bool{"s1/1": true}}
	pub := &fakePublisher{}

	svc := NewService(listersByID(map[string]*fakeLister{"s1": lister}), pub, nil, deduper)
	if err := svc.Run(context.Background(), []sources.Source{src}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.RouteKey != "2" || evt.SourceID != "s1" || evt.SourceName != "Source 1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if !deduper.seen["s1/2"] {
		t.Fatalf("MarkRoute not called for new route")
	}

	// A second pass sees nothing new.
	if err := svc.Run(context.Background(), []sources.Source{src}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("route relayed twice: %d events", len(pub.events))
	}
}

func TestRunKeepsRouteUnmarkedWhenNoSinkAccepted(t *testing.T) {
	src := sources.Source{ID: "s1"}
	pub := &fakePublisher{errOnKey: "bad"}
	deduper := &fakeDeduper{}
	svc := NewService(listersByID(map[string]*fakeLister{
		"s1": {routes: []domain.Route{{"id": "bad"}, {"id": "good"}}},
	}), pub, nil, deduper)

	err := svc.Run(context.Background(), []sources.Source{src})
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected error mentioning bad route, got %v", err)
	}
	if deduper.seen["s1/bad"] {
		t.Fatalf("failed route must stay unmarked for retry")
	}
	if !deduper.seen["s1/good"] {
		t.Fatalf("good route should be marked")
	}
}

func TestRunMarksRouteOnPartialDelivery(t *testing.T) {
	pub := &fakePublisher{errOnKey: "r", delivered: 1}
	deduper := &fakeDeduper{}
	svc := NewService(listersByID(map[string]*fakeLister{
		"s1": {routes: []domain.Route{{"id": "r"}}},
	}), pub, nil, deduper)

	if err := svc.Run(context.Background(), []sources.Source{{ID: "s1"}}); err == nil {
		t.Fatalf("expected partial failure to be reported")
	}
	if !deduper.seen["s1/r"] {
		t.Fatalf("route delivered to one sink should be marked")
	}
}

func TestRunContinuesPastFailingSource(t *testing.T) {
	broken := &fakeLister{err: errors.New("connection refused")}
	healthy := &fakeLister{routes: []domain.Route{{"id": "a"}}}
	pub := &fakePublisher{}
	svc := NewService(listersByID(map[string]*fakeLister{"broken": broken, "healthy": healthy}), pub, nil, nil)

	err := svc.Run(context.Background(), []sources.Source{{ID: "broken"}, {ID: "healthy"}})
	if err == nil || !strings.Contains(err.Error(), "source broken") {
		t.Fatalf("expected error for broken source, got %v", err)
	}
	if healthy.calls != 1 || len(pub.events) != 1 {
		t.Fatalf("healthy source should still be polled and published")
	}
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lister := &fakeLister{}
	svc := NewService(listersByID(map[string]*fakeLister{"s": lister}), nil, nil, nil)
	errs := svc.runAll(ctx, []sources.Source{{ID: "s"}})
	if len(errs) != 0 {
		t.Fatalf("expected no errors on cancelled context, got %v", errs)
	}
	if lister.calls != 0 {
		t.Fatalf("no source should be polled after cancellation")
	}
}

func TestRunRejectsEmptySources(t *testing.T) {
	svc := NewService(nil, nil, nil, nil)
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error when sources list empty")
	}
}

func TestFilterNewRoutesHandlesDeduperErrors(t *testing.T) {
	deduper := &fakeDeduper{
		seen:    map[string]bool{"p/skip": true},
		failKey: "p/error",
		failErr: errors.New("lookup failed"),
	}
	svc := NewService(nil, nil, nil, deduper)
	all := []domain.Route{{"id": "keep"}, {"id": "skip"}, {"id": "error"}}

	filtered := svc.filterNewRoutes(sources.Source{ID: "p"}, all)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 routes after filter, got %d", len(filtered))
	}
	if filtered[0].ID() != "keep" || filtered[1].ID() != "error" {
		t.Fatalf("unexpected filter result %#v", filtered)
	}
}

func TestRunUsesSourceServicesByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rutas" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"id":1,"name":"Route A"},{"name":"anonymous"}]`))
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	svc := NewService(nil, pub, nil, &fakeDeduper{})
	src := sources.Source{ID: "live", BaseURL: srv.URL, CollectionPath: "/rutas"}

	if err := svc.Run(context.Background(), []sources.Source{src}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	if pub.events[0].RouteKey != "1" || len(pub.events[1].RouteKey) != 40 {
		t.Fatalf("unexpected route keys %q %q", pub.events[0].RouteKey, pub.events[1].RouteKey)
	}
}

func TestRunReusesConnectionsAcrossPolls(t *testing.T) {
	var opened atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"id":1}]`))
	}))
	srv.Config.ConnState = func(_ net.Conn, state http.ConnState) {
		if state == http.StateNew {
			opened.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	svc := NewService(nil, &fakePublisher{}, nil, &fakeDeduper{})
	src := sources.Source{ID: "live", BaseURL: srv.URL, CollectionPath: "/rutas"}
	for i := 0; i < 5; i++ {
		if err := svc.Run(context.Background(), []sources.Source{src}); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	if got := opened.Load(); got != 1 {
		t.Fatalf("5 polls opened %d connections, want 1", got)
	}
}

func TestCachedServicesBuildsOnePerSource(t *testing.T) {
	factory := CachedServices()
	a := sources.Source{ID: "a", BaseURL: "http://a.invalid"}
	b := sources.Source{ID: "b", BaseURL: "http://b.invalid"}

	first := factory(a)
	if factory(a) != first {
		t.Fatalf("expected the same lister for repeated lookups of source a")
	}
	if factory(b) == first {
		t.Fatalf("sources must not share a lister")
	}
}
