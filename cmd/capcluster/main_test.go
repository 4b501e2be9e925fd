package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/capcluster/internal/config"
	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/server"
	"github.com/hyperjump/capcluster/internal/storage"
)

const batchYAML = `k: 2
capacities: [2, 2]
items:
  - id: a
    values: [0, 0]
  - id: b
    values: [0, 1]
  - id: c
    values: [10, 10]
  - id: d
    values: [10, 11]
`

func newTestAPI(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = storage.BackendNone
	comps, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(comps.Close)
	srv := server.NewServer(comps.Manager, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClientCommands(t *testing.T) {
	url := newTestAPI(t)
	batch := writeFile(t, "batch.yaml", batchYAML)

	out, err := run(t, "init", "hu", batch, "--server", url, "--capacities", "3,3")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Assigned 4 items in session hu") {
		t.Errorf("init output:\n%s", out)
	}

	more := writeFile(t, "more.json", `{"items": [{"id": "e", "values": [0, 2]}]}`)
	out, err = run(t, "add", "hu", more, "--server", url, "-o", "json")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	var added struct {
		Assignments []models.AssignmentResult `json:"assignments"`
	}
	if err := json.Unmarshal([]byte(out), &added); err != nil {
		t.Fatalf("add output is not JSON: %v\n%s", err, out)
	}
	if len(added.Assignments) != 1 || added.Assignments[0].ItemID != "e" {
		t.Errorf("add assignments: %+v", added.Assignments)
	}

	out, err = run(t, "capacities", "hu", "3, 3", "--server", url)
	if err != nil {
		t.Fatalf("capacities: %v", err)
	}
	if !strings.Contains(out, "capacities: 3,3") {
		t.Errorf("capacities output:\n%s", out)
	}

	out, err = run(t, "status", "hu", "--server", url)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Session hu: active") || !strings.Contains(out, "items:      5") {
		t.Errorf("status output:\n%s", out)
	}

	out, err = run(t, "status", "--server", url)
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	if !strings.Contains(out, "k=2 items=5") || !strings.Contains(out, "sift") {
		t.Errorf("status list output:\n%s", out)
	}

	out, err = run(t, "reset", "hu", "--server", url)
	if err != nil || !strings.Contains(out, "Session hu reset") {
		t.Fatalf("reset: %v %s", err, out)
	}
	out, _ = run(t, "status", "hu", "--server", url)
	if !strings.Contains(out, "inactive") {
		t.Errorf("status after reset:\n%s", out)
	}
}

func TestInitFlagsOverrideBatch(t *testing.T) {
	url := newTestAPI(t)
	batch := writeFile(t, "batch.yaml", batchYAML)

	_, err := run(t, "init", "hu", batch, "--server", url, "--capacities", "1,1")
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 from capacity override, got %v", err)
	}

	if _, err := run(t, "init", "hu", batch, "--server", url, "--k", "3", "--capacities", "2,2,2"); err != nil {
		t.Fatalf("init with overrides: %v", err)
	}
	if _, err := run(t, "init", "hu", batch, "--server", url); err == nil {
		t.Fatal("second init without reset should fail")
	}
	if _, err := run(t, "init", "hu", batch, "--server", url, "--reset"); err != nil {
		t.Fatalf("init --reset: %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	url := newTestAPI(t)
	batch := writeFile(t, "batch.yaml", batchYAML)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown family", []string{"init", "nope", batch}, "404"},
		{"bad capacities", []string{"capacities", "hu", " , "}, "capacities cannot be empty"},
		{"bad output", []string{"status", "-o", "xml"}, "unknown output format"},
		{"missing batch", []string{"add", "hu", filepath.Join(t.TempDir(), "none.yaml")}, "failed to read batch"},
		{"no model", []string{"capacities", "hu", "3"}, "400"},
		{"wrong args", []string{"reset"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "--server", url)...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "capcluster version dev\n" {
		t.Errorf("got %q", out)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		path := writeFile(t, "c.yaml", "server:\n  port: 9999\n")
		cfg, resolved, err := loadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != 9999 || resolved != path {
			t.Errorf("port=%d resolved=%s", cfg.Server.Port, resolved)
		}
	})

	t.Run("missing explicit path", func(t *testing.T) {
		if _, _, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("default path falls back to cwd config", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 7777\n"), 0600); err != nil {
			t.Fatal(err)
		}
		t.Chdir(dir)
		cfg, resolved, err := loadConfig(defaultConfigPath)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Port != 7777 || filepath.Base(resolved) != "config.yaml" {
			t.Errorf("port=%d resolved=%s", cfg.Server.Port, resolved)
		}
	})
}

func TestInitializeComponentsRestores(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = storage.BackendSQLite
	cfg.Storage.DatabasePath = filepath.Join(dir, "capcluster.db")

	comps, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if comps.Metrics == nil {
		t.Error("metrics handler should be enabled by default")
	}
	b := writeFile(t, "batch.yaml", "family: hog\n"+batchYAML)
	if applied, err := comps.Ingester.ApplyFile(context.Background(), b); err != nil || !applied {
		t.Fatalf("ApplyFile: %v %v", applied, err)
	}
	comps.Close()

	comps, err = initializeComponents(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer comps.Close()
	st, err := comps.Manager.Status(context.Background(), "hog")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Active || st.TotalItems != 4 {
		t.Errorf("restored status: %+v", st)
	}
}
