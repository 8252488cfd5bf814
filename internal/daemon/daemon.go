// Package daemon provides watch mode: it observes the GoodLinks database
// file for writes and triggers a sync run after each quiet period.
//
// Runs are executed sequentially from a single goroutine, so the
// one-instance-at-a-time precondition of the sync engine holds within the
// process. A failed run is logged and retried on the next trigger; the
// watermark protocol makes the retry replay the same records.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// SyncFunc performs one sync run. The daemon invokes it on each trigger.
type SyncFunc func(ctx context.Context) error

// Config holds daemon configuration.
type Config struct {
	// DatabasePath is the source database file to watch. Writes to the file
	// itself and to its -wal/-journal siblings all count as changes.
	DatabasePath string

	// DebounceInterval is how long the file must stay quiet before a sync
	// triggers. Batches the rapid write bursts SQLite produces.
	DebounceInterval time.Duration

	// PollInterval, when positive, additionally triggers a sync on a fixed
	// schedule regardless of file events.
	PollInterval time.Duration

	// Logger for daemon activity. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Daemon watches the source database and schedules sync runs.
type Daemon struct {
	cfg     Config
	syncFn  SyncFunc
	watcher *fsnotify.Watcher
}

// New creates a Daemon that calls syncFn whenever the watched database
// settles after a change.
func New(cfg Config, syncFn SyncFunc) (*Daemon, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if syncFn == nil {
		return nil, fmt.Errorf("sync function cannot be nil")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Daemon{cfg: cfg, syncFn: syncFn, watcher: watcher}, nil
}

// Run starts watching and blocks until ctx is cancelled. An initial sync is
// performed before watching begins so a backlog does not wait for the first
// file event.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.watcher.Close()

	// SQLite swaps files around during checkpoints, so watch the directory
	// rather than the file itself.
	dir := filepath.Dir(d.cfg.DatabasePath)
	if err := d.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	d.cfg.Logger.Info("watching source database",
		zap.String("path", d.cfg.DatabasePath),
		zap.Duration("debounce", d.cfg.DebounceInterval))

	d.runSync(ctx)

	var tick <-chan time.Time
	if d.cfg.PollInterval > 0 {
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// The debounce timer is armed on the first relevant event and re-armed
	// on every subsequent one; the sync fires when it expires.
	debounce := time.NewTimer(d.cfg.DebounceInterval)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			d.cfg.Logger.Info("daemon stopping")
			return nil

		case event, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if !d.relevant(event) {
				continue
			}
			d.cfg.Logger.Debug("source change detected",
				zap.String("file", event.Name),
				zap.String("op", event.Op.String()))
			debounce.Reset(d.cfg.DebounceInterval)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.cfg.Logger.Warn("watch error", zap.Error(err))

		case <-debounce.C:
			d.runSync(ctx)

		case <-tick:
			d.runSync(ctx)
		}
	}
}

// relevant reports whether the event concerns the watched database file or
// one of SQLite's sidecar files.
func (d *Daemon) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(d.cfg.DatabasePath)
	name := filepath.Base(event.Name)
	return name == base || strings.HasPrefix(name, base+"-")
}

// runSync invokes the sync function, logging failures rather than stopping
// the daemon: the next trigger retries the same records.
func (d *Daemon) runSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := d.syncFn(ctx); err != nil {
		d.cfg.Logger.Error("sync run failed", zap.Error(err))
		return
	}
	d.cfg.Logger.Debug("sync run finished", zap.Duration("elapsed", time.Since(start)))
}
