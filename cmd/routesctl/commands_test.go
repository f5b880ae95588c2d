package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samvad-hq/rutas-relay/internal/config"
	"github.com/samvad-hq/rutas-relay/pkg/httpclient"
)

func routesAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rutas" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer cli-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`[{"id":1,"name":"Route A"}]`))
		case http.MethodPost:
			raw, _ := io.ReadAll(r.Body)
			var in map[string]any
			json.Unmarshal(raw, &in)
			in["id"] = 2
			json.NewEncoder(w).Encode(in)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, baseURL string, args ...string) (string, error) {
	t.Helper()
	prev := loadConfigFn
	loadConfigFn = func() (*config.Config, error) {
		return &config.Config{APIBaseURL: baseURL, APITimeout: 2 * time.Second, LogLevel: "error"}, nil
	}
	t.Cleanup(func() { loadConfigFn = prev })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestListPrintsRoutes(t *testing.T) {
	srv := routesAPI(t)
	out, err := execute(t, srv.URL+"/api", "list", "--token", "cli-token")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0]["name"] != "Route A" {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestCreateFromInlineJSON(t *testing.T) {
	srv := routesAPI(t)
	out, err := execute(t, srv.URL+"/api", "create", "--token", "cli-token", "--data", `{"name":"Route B"}`)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, `"id": 2`) || !strings.Contains(out, `"name": "Route B"`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestCreateFromYAMLFile(t *testing.T) {
	srv := routesAPI(t)
	path := filepath.Join(t.TempDir(), "route.yaml")
	if err := os.WriteFile(path, []byte("name: Route C\nstops:\n  - Norte\n  - Sur\n"), 0o644); err != nil {
		t.Fatalf("write route file: %v", err)
	}
	out, err := execute(t, "http://unused.invalid", "create", "--base-url", srv.URL+"/api", "--token", "cli-token", "-f", path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, `"Route C"`) || !strings.Contains(out, `"Norte"`) {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestCreateRequiresPayload(t *testing.T) {
	if _, err := execute(t, "http://localhost", "create"); err == nil {
		t.Fatalf("expected error without --data or --file")
	}
}

func TestListSurfacesTransportError(t *testing.T) {
	srv := routesAPI(t)
	_, err := execute(t, srv.URL+"/api", "list")
	if !httpclient.IsTransportError(err, httpclient.KindStatus) {
		t.Fatalf("expected status transport error, got %v", err)
	}
}
