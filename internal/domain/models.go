package domain

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic key generation
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Domain contains core models shared across packages.

// Route is a single record of the "rutas" collection. Its shape is owned by
// the server; the client never validates it.
type Route map[string]any

// ID returns the server-assigned identifier, or "" when the record has none.
func (r Route) ID() string {
	raw, ok := r["id"]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Name returns the "name" field when it is a string.
func (r Route) Name() string {
	if v, ok := r["name"].(string); ok {
		return v
	}
	return ""
}

// Key identifies a route for deduplication: the id when present, otherwise a
// hash of the record contents.
func (r Route) Key() string {
	if id := r.ID(); id != "" {
		return id
	}
	// json.Marshal sorts map keys, so equal records hash equally.
	raw, err := json.Marshal(r)
	if err != nil {
		return ""
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
