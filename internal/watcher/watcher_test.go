package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) count(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.paths {
		if p == path {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, cfg Config, r *recorder) *Watcher {
	t.Helper()
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	w := New(cfg, r.handle)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "hu")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	r := &recorder{}
	startWatcher(t, Config{Directories: []string{dir}, Extensions: []string{".json", "YAML"}, Recursive: true}, r)

	batch := filepath.Join(sub, "batch.json")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(batch, []byte(`{"family":"hu"}`), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(sub, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	upper := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(upper, []byte("family: hog"), 0644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return r.count(batch) >= 1 && r.count(upper) >= 1 })
	time.Sleep(150 * time.Millisecond)
	if n := r.count(batch); n != 1 {
		t.Errorf("batch handled %d times, want 1 after debounce", n)
	}
	if n := r.count(filepath.Join(sub, "notes.txt")); n != 0 {
		t.Errorf("non-matching extension handled %d times", n)
	}
}

func TestWatcher_SyncsExistingFilesAndCreatesDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "inbox")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	existing := filepath.Join(dir, "pending.yml")
	if err := os.WriteFile(existing, []byte("family: hu"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")

	r := &recorder{}
	w := startWatcher(t, Config{Directories: []string{dir, missing}, Extensions: []string{".yml"}}, r)

	waitFor(t, func() bool { return r.count(existing) == 1 })
	if _, err := os.Stat(missing); err != nil {
		t.Errorf("missing inbox should be created: %v", err)
	}
	if got := w.Directories(); len(got) != 2 {
		t.Errorf("Directories() = %v", got)
	}
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	r := &recorder{}
	startWatcher(t, Config{Directories: []string{dir}, Recursive: true}, r)

	sub := filepath.Join(dir, "late")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	f := filepath.Join(sub, "b.json")
	if err := os.WriteFile(f, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return r.count(f) >= 1 })
}

func TestWatcher_RemovedBeforeSettleIsDropped(t *testing.T) {
	dir := t.TempDir()
	r := &recorder{}
	startWatcher(t, Config{Directories: []string{dir}, Debounce: 300 * time.Millisecond}, r)

	f := filepath.Join(dir, "gone.json")
	if err := os.WriteFile(f, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := os.Remove(f); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)
	if r.total() != 0 {
		t.Errorf("removed file was handled %d times", r.total())
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New(Config{Directories: []string{t.TempDir()}}, func(context.Context, string) {})
	w.Stop()
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path string
		exts []string
		want bool
	}{
		{"a.json", []string{".json"}, true},
		{"a.JSON", []string{"json"}, true},
		{"a.yaml", []string{".json", ".yaml"}, true},
		{"a.txt", []string{".json"}, false},
		{"a.txt", nil, true},
		{"noext", []string{".json"}, false},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.exts); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.exts, got, tt.want)
		}
	}
}
