package registrymanager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bianoble/registry-manager/internal/config"
	"github.com/bianoble/registry-manager/internal/metrics"
)

const registryJSON = `{
  "buildTime": "2024-06-01T10:00:00.000Z",
  "builtWith": {"toolchain": "0.9.0", "types": "0.9.0"},
  "repository": {"name": "Paperback Community", "description": "Community extensions"},
  "sources": [
    {"id": "MangaDex", "name": "MangaDex", "description": "", "version": "1.0.0", "icon": "icon.png",
     "language": "en", "contentRating": "EVERYONE", "badges": [], "capabilities": [0, 1], "developers": []}
  ]
}`

const sourceJSON = `{
  "buildTime": "2024-06-02T10:00:00.000Z",
  "builtWith": {"toolchain": "0.9.1", "types": "0.9.1"},
  "repository": {"name": "Extensions", "description": ""},
  "sources": [
    {"id": "MangaDex", "name": "MangaDex", "description": "", "version": "1.1.0", "icon": "icon.png",
     "language": "en", "contentRating": "EVERYONE", "badges": [], "capabilities": [0, 1], "developers": []},
    {"id": "Comick", "name": "Comick", "description": "", "version": "0.1.0", "icon": "icon.png",
     "language": null, "contentRating": "MATURE", "badges": [null], "capabilities": 2,
     "developers": [{"name": "dev", "website": null, "github": "dev"}]}
  ]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// setupDirs creates a registry checkout and an extension repository checkout.
func setupDirs(t *testing.T) (registryDir, sourceDir string) {
	t.Helper()
	registryDir = filepath.Join(t.TempDir(), "registry")
	sourceDir = filepath.Join(t.TempDir(), "source")

	writeFile(t, filepath.Join(registryDir, "versioning.json"), registryJSON)
	writeFile(t, filepath.Join(sourceDir, "versioning.json"), sourceJSON)
	for _, id := range []string{"MangaDex", "Comick"} {
		writeFile(t, filepath.Join(sourceDir, id, "index.js"), "export const "+id+" = {}")
		writeFile(t, filepath.Join(sourceDir, id, "static", "icon.png"), "\x89PNG\xff")
	}
	return registryDir, sourceDir
}

func testConfig() *Config {
	cfg := config.Defaults()
	cfg.Token = "github_pat_" + strings.Repeat("a", 82)
	cfg.Repository = "paperback-community/extensions-source"
	cfg.Branch = "stable/0.9"
	return cfg
}

func fixedNow() time.Time { return time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC) }

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Token = "ghp_classic"

	_, err := New(Options{Config: cfg})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "token") {
		t.Errorf("error should name the token field: %v", err)
	}
}

func TestDiffOffline(t *testing.T) {
	registryDir, sourceDir := setupDirs(t)

	client, err := New(Options{Config: testConfig(), RegistryDir: registryDir, SourceDir: sourceDir, Now: fixedNow})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !client.Offline() {
		t.Error("client with both directories should be offline")
	}

	diff, err := client.Diff(context.Background())
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	got := diff.Reconcile.ChangedIDs()
	if len(got) != 2 || got[0] != "MangaDex" || got[1] != "Comick" {
		t.Errorf("changed = %v, want [MangaDex Comick]", got)
	}
	if diff.Manifest.BuildTime != "2024-06-03T08:00:00.000Z" {
		t.Errorf("buildTime = %q", diff.Manifest.BuildTime)
	}
	if len(diff.Manifest.Sources) != 3 {
		t.Fatalf("expected 3 registry records, got %d", len(diff.Manifest.Sources))
	}
	if diff.Manifest.Sources[0].Version != "1.1.0" || diff.Manifest.Sources[1].Version != "1.0.0" {
		t.Errorf("newer record should precede the old one: %+v", diff.Manifest.Sources[:2])
	}
}

func TestDiffNothingToUpdate(t *testing.T) {
	registryDir, _ := setupDirs(t)
	m := metrics.New()

	client, err := New(Options{Config: testConfig(), RegistryDir: registryDir, SourceDir: registryDir, Metrics: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	diff, err := client.Diff(context.Background())
	if !errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected ErrNothingToUpdate, got %v", err)
	}
	if diff == nil || len(diff.Reconcile.Unchanged) != 1 {
		t.Fatalf("diff should report the unchanged extension: %+v", diff)
	}
}

// runs returns the runs_total counter for outcome.
func runs(t *testing.T, m *metrics.Metrics, outcome string) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "registry_manager_runs_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDiffFailureCountsRun(t *testing.T) {
	registryDir, _ := setupDirs(t)
	emptyDir := t.TempDir()
	m := metrics.New()

	client, err := New(Options{Config: testConfig(), RegistryDir: registryDir, SourceDir: emptyDir, Metrics: m})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.Diff(context.Background()); err == nil || errors.Is(err, ErrNothingToUpdate) {
		t.Fatalf("expected a failure for a missing manifest, got %v", err)
	}
	if got := runs(t, m, metrics.OutcomeFailure); got != 1 {
		t.Errorf("failure runs = %v, want 1", got)
	}
	if got := runs(t, m, metrics.OutcomeSuccess); got != 0 {
		t.Errorf("success runs = %v, want 0", got)
	}
}

func TestSyncDryRunOffline(t *testing.T) {
	registryDir, sourceDir := setupDirs(t)

	client, err := New(Options{Config: testConfig(), RegistryDir: registryDir, SourceDir: sourceDir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := client.Sync(context.Background(), SyncOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if n := result.Plan.Files(); n != 5 {
		t.Errorf("plan files = %d, want 5", n)
	}
	if result.Tree != "" {
		t.Errorf("dry run should not create a tree, got %q", result.Tree)
	}
}

func TestSyncCreatesTreeThroughAPI(t *testing.T) {
	registryDir, sourceDir := setupDirs(t)

	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/paperback-community/extensions/git/trees/master":
			_, _ = w.Write([]byte(`{"sha":"base1","tree":[]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/repos/paperback-community/extensions/git/blobs":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sha":"blob1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/repos/paperback-community/extensions/git/trees":
			data, _ := io.ReadAll(r.Body)
			var body struct {
				BaseTree string `json:"base_tree"`
				Tree     []struct {
					Path string `json:"path"`
				} `json:"tree"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				t.Errorf("decoding tree body: %v", err)
			}
			if body.BaseTree != "base1" {
				t.Errorf("base_tree = %q", body.BaseTree)
			}
			for _, e := range body.Tree {
				paths = append(paths, e.Path)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sha":"tree2","tree":[]}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.APIURL = srv.URL

	client, err := New(Options{Config: cfg, RegistryDir: registryDir, SourceDir: sourceDir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := client.Sync(context.Background(), SyncOptions{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Tree != "tree2" {
		t.Errorf("tree = %q, want tree2", result.Tree)
	}

	want := []string{
		"MangaDex/index.js", "MangaDex/static/icon.png",
		"Comick/index.js", "Comick/static/icon.png",
		"versioning.json",
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("tree paths = %v, want %v", paths, want)
	}
}

func TestReconcileHelpers(t *testing.T) {
	registry, err := Decode(base64.StdEncoding.EncodeToString([]byte(registryJSON)))
	if err != nil {
		t.Fatalf("Decode registry: %v", err)
	}
	repository, err := Decode(base64.StdEncoding.EncodeToString([]byte(sourceJSON)))
	if err != nil {
		t.Fatalf("Decode source: %v", err)
	}

	res, err := Reconcile(registry, repository)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(res.Changes))
	}

	out, err := Encode(registry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode round trip: %v", err)
	}
	if back.BuiltWith.Types != "0.9.1" {
		t.Errorf("types = %q, want 0.9.1", back.BuiltWith.Types)
	}
}
