package publishers

import (
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/rutas-relay/internal/domain"
)

// EventRouteDiscovered is emitted the first time a route is observed on a source.
const EventRouteDiscovered = "route.discovered"

// Event represents the payload published downstream.
type Event struct {
	ID         string       `json:"event_id"`
	Type       string       `json:"type"`
	SourceID   string       `json:"source_id"`
	SourceName string       `json:"source_name"`
	RouteKey   string       `json:"route_key"`
	Route      domain.Route `json:"route"`
	ObservedAt time.Time    `json:"observed_at"`
}

// NewEvent constructs a route.discovered Event for the given source + route.
func NewEvent(sourceID, sourceName string, route domain.Route) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventRouteDiscovered,
		SourceID:   sourceID,
		SourceName: sourceName,
		RouteKey:   route.Key(),
		Route:      route,
		ObservedAt: time.Now().UTC(),
	}
}

// attributes are attached to broker messages for subscriber-side filtering.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"source_id":  e.SourceID,
		"event_type": e.Type,
	}
}
