// Package routes is the data-access client for the "rutas" collection.
//
// Each operation issues exactly one request through the injected
// httpclient.Client and returns the decoded payload as-is. Failures from the
// client are returned unchanged: no wrapping, no retries.
package routes

import (
	"context"
	"net/http"
	"strings"

	"github.com/samvad-hq/rutas-relay/internal/domain"
	"github.com/samvad-hq/rutas-relay/pkg/httpclient"
)

// CollectionPath is the default path of the routes collection.
const CollectionPath = "/rutas"

// Service exposes the operations of the routes collection.
type Service struct {
	client httpclient.Client
	path   string
}

// Option customizes a Service.
type Option func(*Service)

// WithCollectionPath overrides the collection path (default /rutas).
func WithCollectionPath(path string) Option {
	return func(s *Service) {
		if p := strings.TrimSpace(path); p != "" {
			s.path = p
		}
	}
}

// NewService binds a Service to a pre-configured HTTP client.
func NewService(client httpclient.Client, opts ...Option) *Service {
	s := &Service{client: client, path: CollectionPath}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the collection path requests are sent to.
func (s *Service) Path() string { return s.path }

// FetchAll returns every route in the collection. An empty response body
// yields a nil slice.
func (s *Service) FetchAll(ctx context.Context) ([]domain.Route, error) {
	resp, err := s.client.Get(ctx, s.path, nil)
	if err != nil {
		return nil, err
	}
	var out []domain.Route
	if err := httpclient.DecodeJSON(http.MethodGet, s.path, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts record to the collection and returns the stored route,
// including any server-assigned fields. A server that acknowledges with an
// empty body (201/204) yields a nil route and no error.
func (s *Service) Create(ctx context.Context, record domain.Route) (domain.Route, error) {
	resp, err := s.client.Post(ctx, s.path, record, nil)
	if err != nil {
		return nil, err
	}
	var out domain.Route
	if err := httpclient.DecodeJSON(http.MethodPost, s.path, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}
