package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samvad-hq/rutas-relay/internal/domain"
	"github.com/samvad-hq/rutas-relay/internal/logger"
	"github.com/samvad-hq/rutas-relay/internal/storage"
	"github.com/samvad-hq/rutas-relay/pkg/publishers"
	"github.com/samvad-hq/rutas-relay/pkg/sources"
)

// Service polls sources and relays routes it has not seen before.
type Service struct {
	listers   ListerFactory
	publisher EventPublisher
	deduper   Deduper
	log       logger.Logger
}

// NewService wires a watcher. A nil factory uses CachedServices; a nil
// deduper treats every route as new.
func NewService(listers ListerFactory, pub EventPublisher, log logger.Logger, deduper Deduper) *Service {
	if listers == nil {
		listers = CachedServices()
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		listers:   listers,
		publisher: pub,
		deduper:   deduper,
		log:       log,
	}
}

// CachedServices returns a factory that builds one routes.Service per source
// id and hands the same instance back on every later poll.
func CachedServices() ListerFactory {
	var mu sync.Mutex
	cache := make(map[string]RouteLister)
	return func(src sources.Source) RouteLister {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := cache[src.ID]; ok {
			return l
		}
		l := sources.ServiceFor(src)
		cache[src.ID] = l
		return l
	}
}

// Run executes one poll pass over srcs. Failures of individual sources are
// joined into the returned error; a cancelled context ends the pass quietly.
func (s *Service) Run(ctx context.Context, srcs []sources.Source) error {
	if s == nil || s.listers == nil {
		return fmt.Errorf("watcher service is not initialized")
	}
	if len(srcs) == 0 {
		return fmt.Errorf("no sources configured for watching")
	}
	return errors.Join(s.runAll(ctx, srcs)...)
}

func (s *Service) runAll(ctx context.Context, srcs []sources.Source) []error {
	var errs []error
	for _, src := range srcs {
		if ctx.Err() != nil {
			s.log.WarnObj("poll interrupted", "reason", ctx.Err().Error())
			return nil
		}
		if err := s.runSource(ctx, src); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("source poll failed", "source_error", map[string]any{
				"source_id": src.ID,
				"error":     err.Error(),
			})
		}
	}
	return errs
}

func (s *Service) runSource(ctx context.Context, src sources.Source) error {
	all, err := s.listers(src).FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch routes from source %s: %w", src.ID, err)
	}

	fresh := s.filterNewRoutes(src, all)
	published, err := s.publishRoutes(ctx, src, fresh)

	s.log.InfoObj("source poll completed", "source_result", map[string]any{
		"source_id":        src.ID,
		"routes_listed":    len(all),
		"routes_new":       len(fresh),
		"routes_published": published,
	})
	return err
}

// filterNewRoutes drops routes already relayed and duplicates within the
// same listing. Lookup failures keep the route so it is not silently lost.
func (s *Service) filterNewRoutes(src sources.Source, all []domain.Route) []domain.Route {
	out := make([]domain.Route, 0, len(all))
	batch := make(map[string]struct{}, len(all))
	for _, r := range all {
		key := r.Key()
		if _, dup := batch[key]; dup {
			continue
		}
		batch[key] = struct{}{}

		if s.deduper != nil {
			seen, err := s.deduper.SeenRoute(storage.ScopedKey(src.ID, key))
			if err != nil {
				s.log.WarnObj("route dedupe lookup failed", "dedupe_error", map[string]any{
					"source_id": src.ID,
					"route_key": key,
					"error":     err.Error(),
				})
			} else if seen {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// publishRoutes emits one event per route. A route is marked once at least one
// sink accepted it, so a total publish failure is retried on the next poll.
func (s *Service) publishRoutes(ctx context.Context, src sources.Source, fresh []domain.Route) (int, error) {
	var (
		errs      []error
		published int
	)
	for _, r := range fresh {
		if ctx.Err() != nil {
			break
		}
		evt := publishers.NewEvent(src.ID, src.Name, r)

		delivered := 0
		var err error
		if s.publisher != nil {
			delivered, err = s.publisher.Publish(ctx, evt)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("publish route %s from source %s: %w", evt.RouteKey, src.ID, err))
			if delivered == 0 {
				continue
			}
		}
		published++

		if s.deduper == nil {
			continue
		}
		if err := s.deduper.MarkRoute(storage.ScopedKey(src.ID, evt.RouteKey)); err != nil {
			errs = append(errs, fmt.Errorf("mark route %s from source %s: %w", evt.RouteKey, src.ID, err))
		}
	}
	return published, errors.Join(errs...)
}
