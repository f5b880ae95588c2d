// Package sources loads the set of route APIs the watcher polls.
package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/rutas-relay/pkg/routes"
	"gopkg.in/yaml.v3"
)

const defaultTimeoutSeconds = 15

// Source describes one route API.
type Source struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	BaseURL        string            `json:"base_url" yaml:"base_url"`
	CollectionPath string            `json:"collection_path" yaml:"collection_path"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	AuthToken      string            `json:"auth_token" yaml:"auth_token"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        *bool             `json:"enabled" yaml:"enabled"`
}

type configFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// Registry holds the sources declared in a config file.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	idx     map[string]Source
}

// LoadRegistry loads the sources registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sources file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	cf, err := parseConfigFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(cf.Sources)
}

// NewRegistry sanitizes and validates srcs into a Registry.
func NewRegistry(srcs []Source) (*Registry, error) {
	if len(srcs) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}

	reg := &Registry{
		sources: make([]Source, 0, len(srcs)),
		idx:     make(map[string]Source, len(srcs)),
	}
	for i := range srcs {
		src := sanitizeSource(srcs[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := reg.idx[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		reg.sources = append(reg.sources, src)
		reg.idx[src.ID] = src
	}
	return reg, nil
}

type unmarshalFn func([]byte, any) error

func parseConfigFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var cf configFile
		if err := d.fn(data, &cf); err == nil {
			return cf, nil
		}
	}

	return configFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

func sanitizeSource(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = s.ID
	}
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	s.CollectionPath = strings.TrimSpace(s.CollectionPath)
	if s.CollectionPath == "" {
		s.CollectionPath = routes.CollectionPath
	}
	if !strings.HasPrefix(s.CollectionPath, "/") {
		s.CollectionPath = "/" + s.CollectionPath
	}
	s.AuthToken = strings.TrimSpace(s.AuthToken)
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultTimeoutSeconds
	}
	if s.Enabled == nil {
		def := true
		s.Enabled = &def
	}

	if len(s.Headers) > 0 {
		headers := make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k == "" || v == "" {
				continue
			}
			headers[k] = v
		}
		s.Headers = headers
	}
	return s
}

func validateSource(s Source) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.BaseURL == "" {
		return fmt.Errorf("base_url is required for source %q", s.ID)
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("parse base_url for source %q: %w", s.ID, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url for source %q must include scheme and host", s.ID)
	}
	return nil
}

// ByID returns the source by id.
func (r *Registry) ByID(id string) (Source, bool) {
	if r == nil {
		return Source{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[strings.TrimSpace(id)]
	return s, ok
}

// All returns all configured sources.
func (r *Registry) All() []Source {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns the sources that are enabled.
func (r *Registry) Enabled() []Source {
	all := r.All()
	out := make([]Source, 0, len(all))
	for _, s := range all {
		if s.EnabledValue() {
			out = append(out, s)
		}
	}
	return out
}

// EnabledValue returns enabled flag defaulting to true.
func (s Source) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// Timeout returns the per-request timeout for the source.
func (s Source) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}
