package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestNew_Validation(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }

	if _, err := New(Config{}, noop); err == nil {
		t.Error("expected error for empty database path")
	}
	if _, err := New(Config{DatabasePath: "/tmp/db"}, nil); err == nil {
		t.Error("expected error for nil sync function")
	}

	d, err := New(Config{DatabasePath: "/tmp/db"}, noop)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_ = d.watcher.Close()
}

func TestRelevant(t *testing.T) {
	d := &Daemon{cfg: Config{DatabasePath: "/data/goodlinks/data.sqlite"}}

	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"/data/goodlinks/data.sqlite", fsnotify.Write, true},
		{"/data/goodlinks/data.sqlite-wal", fsnotify.Write, true},
		{"/data/goodlinks/data.sqlite-journal", fsnotify.Create, true},
		{"/data/goodlinks/data.sqlite-shm", fsnotify.Write, true},
		{"/data/goodlinks/unrelated.txt", fsnotify.Write, false},
		{"/data/goodlinks/data.sqlite", fsnotify.Chmod, false},
	}

	for _, tt := range tests {
		event := fsnotify.Event{Name: tt.name, Op: tt.op}
		if got := d.relevant(event); got != tt.want {
			t.Errorf("relevant(%s, %v) = %v, want %v", tt.name, tt.op, got, tt.want)
		}
	}
}

func TestRun_InitialSyncAndFileTrigger(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data.sqlite")
	if err := os.WriteFile(dbPath, []byte("seed"), 0644); err != nil {
		t.Fatalf("failed to seed db file: %v", err)
	}

	var runs atomic.Int32
	d, err := New(Config{
		DatabasePath:     dbPath,
		DebounceInterval: 50 * time.Millisecond,
	}, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Wait for the initial sync.
	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runs.Load() < 1 {
		t.Fatal("initial sync never ran")
	}

	// A burst of writes should coalesce into one additional run.
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(dbPath, []byte("change"), 0644); err != nil {
			t.Fatalf("failed to touch db file: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline = time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := runs.Load(); got < 2 {
		t.Fatalf("expected a debounced run after writes, got %d total runs", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("daemon did not stop after cancellation")
	}
}

func TestRun_SyncFailureDoesNotStopDaemon(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data.sqlite")
	if err := os.WriteFile(dbPath, []byte("seed"), 0644); err != nil {
		t.Fatalf("failed to seed db file: %v", err)
	}

	var runs atomic.Int32
	d, err := New(Config{
		DatabasePath:     dbPath,
		DebounceInterval: 30 * time.Millisecond,
	}, func(ctx context.Context) error {
		runs.Add(1)
		return context.DeadlineExceeded // any error
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := os.WriteFile(dbPath, []byte("change"), 0644); err != nil {
		t.Fatalf("failed to touch db file: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatal("daemon stopped retrying after a failed run")
	}

	cancel()
	<-done
}
