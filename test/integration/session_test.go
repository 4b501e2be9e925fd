// Package integration provides end-to-end tests over real storage backends and the inbox watcher.
package integration

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/capcluster/internal/ingest"
	"github.com/hyperjump/capcluster/internal/models"
	"github.com/hyperjump/capcluster/internal/session"
	"github.com/hyperjump/capcluster/internal/storage"
	"github.com/hyperjump/capcluster/internal/watcher"
)

func groups() []models.ItemInput {
	var items []models.ItemInput
	for i := 0; i < 6; i++ {
		items = append(items,
			models.ItemInput{ID: fmt.Sprintf("low-%d", i), Values: []float64{float64(i) * 0.1, 0}, Label: "low"},
			models.ItemInput{ID: fmt.Sprintf("high-%d", i), Values: []float64{50 + float64(i)*0.1, 50}, Label: "high"},
		)
	}
	return items
}

func backends(t *testing.T) map[string]storage.Options {
	dir := t.TempDir()
	return map[string]storage.Options{
		"sqlite": {Backend: storage.BackendSQLite, DatabasePath: filepath.Join(dir, "db.sqlite")},
		"badger": {Backend: storage.BackendBadger, BadgerPath: filepath.Join(dir, "badger")},
	}
}

func TestIntegration_PersistAndRestore(t *testing.T) {
	for name, opts := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, err := storage.Open(opts)
			if err != nil {
				t.Fatal(err)
			}
			mgr, err := session.NewManager(session.WithStore(store))
			if err != nil {
				t.Fatal(err)
			}

			init, err := mgr.Initialize(ctx, "hu", models.InitializeRequest{Items: groups(), Capacities: []int{8, 8}})
			if err != nil {
				t.Fatal(err)
			}
			if init.Metrics == nil || init.Metrics.External == nil || math.Abs(init.Metrics.External.ARI-1) > 1e-9 {
				t.Errorf("expected perfect ARI, got %+v", init.Metrics)
			}
			if _, err := mgr.AddItems(ctx, "hu", models.AddItemsRequest{
				Items: []models.ItemInput{{ID: "late", Values: []float64{49, 49}, Label: "high"}},
			}); err != nil {
				t.Fatal(err)
			}
			if _, err := mgr.UpdateCapacities(ctx, "hu", []int{9, 9}); err != nil {
				t.Fatal(err)
			}
			before, err := mgr.Status(ctx, "hu")
			if err != nil {
				t.Fatal(err)
			}
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}

			store, err = storage.Open(opts)
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()
			restored, err := session.NewManager(session.WithStore(store))
			if err != nil {
				t.Fatal(err)
			}
			n, err := restored.Restore(ctx)
			if err != nil || n != 1 {
				t.Fatalf("Restore() = %d, %v", n, err)
			}
			after, err := restored.Status(ctx, "hu")
			if err != nil {
				t.Fatal(err)
			}
			if after.TotalItems != before.TotalItems || fmt.Sprint(after.Capacities) != fmt.Sprint(before.Capacities) ||
				fmt.Sprint(after.CurrentCounts) != fmt.Sprint(before.CurrentCounts) {
				t.Errorf("restored status differs:\nbefore %+v\nafter  %+v", before, after)
			}

			if err := restored.Reset(ctx, "hu"); err != nil {
				t.Fatal(err)
			}
			snaps, err := store.LoadSnapshots(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(snaps) != 0 {
				t.Errorf("reset should delete the snapshot, found %d", len(snaps))
			}
		})
	}
}

func TestIntegration_InboxBatch(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox")
	mgr, err := session.NewManager()
	if err != nil {
		t.Fatal(err)
	}
	in := ingest.New(mgr)
	w := watcher.New(watcher.Config{
		Directories: []string{inbox},
		Extensions:  []string{".yaml"},
		Recursive:   true,
		Debounce:    50 * time.Millisecond,
	}, in.HandleFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	dir := filepath.Join(inbox, "zernike")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new subdirectory.
	time.Sleep(100 * time.Millisecond)
	batch := "k: 2\nitems:\n  - {id: a, values: [0, 0]}\n  - {id: b, values: [9, 9]}\n"
	if err := os.WriteFile(filepath.Join(dir, "first.yaml"), []byte(batch), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := mgr.Status(ctx, "zernike")
		if err == nil && st.Active {
			if st.TotalItems != 2 || in.Applied() != 1 {
				t.Errorf("status %+v applied %d", st, in.Applied())
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("batch from inbox was not applied")
}
