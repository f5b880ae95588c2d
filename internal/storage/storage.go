// Package storage tracks which routes the watcher has already relayed.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store tracks relayed route keys.
type Store interface {
	Close() error
	SeenRoute(key string) (bool, error)
	MarkRoute(key string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RouteTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRouteTTL        = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		s, err := openBolt(path, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

// ScopedKey namespaces a route key by the source it came from.
func ScopedKey(sourceID, routeKey string) string {
	return sourceID + "/" + routeKey
}

func normalizeOptions(opts Options) Options {
	if opts.RouteTTL <= 0 {
		opts.RouteTTL = defaultRouteTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                   { return nil }
func (noopStore) SeenRoute(string) (bool, error) { return false, nil }
func (noopStore) MarkRoute(string) error         { return nil }
