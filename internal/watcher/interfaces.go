package watcher

import (
	"context"

	"github.com/samvad-hq/rutas-relay/internal/domain"
	"github.com/samvad-hq/rutas-relay/pkg/publishers"
	"github.com/samvad-hq/rutas-relay/pkg/sources"
)

// RouteLister lists the routes currently exposed by a source.
type RouteLister interface {
	FetchAll(ctx context.Context) ([]domain.Route, error)
}

// ListerFactory resolves the lister for a configured source.
type ListerFactory func(src sources.Source) RouteLister

// EventPublisher publishes route events downstream and reports how many sinks accepted it.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper tracks route keys that were already relayed.
type Deduper interface {
	SeenRoute(key string) (bool, error)
	MarkRoute(key string) error
}
