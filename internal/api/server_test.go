package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pyrill/rilldev/internal/recipe"
	"github.com/pyrill/rilldev/internal/storage"
)

type fakeRuns struct {
	records []storage.RunRecord
	err     error

	lastRecipe string
	lastLimit  int
}

func (f *fakeRuns) Recent(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	f.lastLimit = limit
	return f.records, f.err
}

func (f *fakeRuns) RecentByRecipe(ctx context.Context, recipe string, limit int) ([]storage.RunRecord, error) {
	f.lastRecipe = recipe
	f.lastLimit = limit
	return f.records, f.err
}

func newTestServer(t *testing.T, runs RunLister) *httptest.Server {
	t.Helper()

	registry := recipe.NewRegistry()
	for _, rec := range []*recipe.Recipe{
		{Name: "lint", Help: "Run the linter", Steps: []string{"ruff check ."}},
		{Name: "test.3.12", Steps: []string{"a", "b"}, Python: "3.12"},
	} {
		if err := registry.Add(rec); err != nil {
			t.Fatal(err)
		}
	}

	s := New(Config{Listen: "127.0.0.1:0", PackageName: "di-testing"}, registry, runs,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.setupRoutes())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeRuns{})

	body := getJSON(t, ts.URL+"/healthz", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
	if body["package"] != "di-testing" {
		t.Errorf("package = %v", body["package"])
	}
	if body["recipes_loaded"] != float64(2) {
		t.Errorf("recipes_loaded = %v", body["recipes_loaded"])
	}
}

func TestRecipesEndpoint(t *testing.T) {
	ts := newTestServer(t, &fakeRuns{})

	body := getJSON(t, ts.URL+"/recipes", http.StatusOK)
	recipes, ok := body["recipes"].([]any)
	if !ok || len(recipes) != 2 {
		t.Fatalf("recipes = %v", body["recipes"])
	}

	first := recipes[0].(map[string]any)
	if first["name"] != "lint" || first["help"] != "Run the linter" || first["steps"] != float64(1) {
		t.Errorf("first recipe = %v", first)
	}
	second := recipes[1].(map[string]any)
	if second["python"] != "3.12" || second["steps"] != float64(2) {
		t.Errorf("second recipe = %v", second)
	}
}

func TestRunsEndpoint(t *testing.T) {
	runs := &fakeRuns{records: []storage.RunRecord{
		{ID: "r1", Recipe: "lint", Status: storage.StatusSucceeded, StartedAt: time.Now().UTC()},
	}}
	ts := newTestServer(t, runs)

	body := getJSON(t, ts.URL+"/runs", http.StatusOK)
	list, ok := body["runs"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("runs = %v", body["runs"])
	}
	if runs.lastLimit != 20 {
		t.Errorf("default limit = %d, want 20", runs.lastLimit)
	}

	getJSON(t, ts.URL+"/runs?limit=5", http.StatusOK)
	if runs.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", runs.lastLimit)
	}

	getJSON(t, ts.URL+"/runs?recipe=lint", http.StatusOK)
	if runs.lastRecipe != "lint" {
		t.Errorf("recipe filter = %q", runs.lastRecipe)
	}
}

func TestRunsEndpointLimitValidation(t *testing.T) {
	ts := newTestServer(t, &fakeRuns{})

	for _, raw := range []string{"0", "-1", "501", "abc"} {
		body := getJSON(t, ts.URL+"/runs?limit="+raw, http.StatusBadRequest)
		if body["error"] == "" {
			t.Errorf("limit=%s: missing error body", raw)
		}
	}
}

func TestRunsEndpointListerFailure(t *testing.T) {
	ts := newTestServer(t, &fakeRuns{err: fmt.Errorf("database locked")})

	body := getJSON(t, ts.URL+"/runs", http.StatusInternalServerError)
	if body["error"] != "failed to list runs" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestRunsEndpointEmptyIsArray(t *testing.T) {
	ts := newTestServer(t, &fakeRuns{})

	body := getJSON(t, ts.URL+"/runs", http.StatusOK)
	if _, ok := body["runs"].([]any); !ok {
		t.Errorf("runs is not an array: %v", body["runs"])
	}
}
