// Package inbox watches a directory for agent report files and hands each
// one to a handler once it has stopped changing. The file name prefix
// selects the reconciliation mode:
//
//	recommend*.txt  recommendations
//	hold*.txt       hold-placement results
//	status*.txt     hold-status report (also sync*)
//
// Handled files move to processed/, files the handler rejects to failed/.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mesh-intelligence/holdwatch/internal/lifecycle"
)

// Subdirectories that receive files after handling.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Handler processes the text of one report file.
type Handler func(ctx context.Context, mode lifecycle.Mode, path, text string) error

// Options configures the watcher.
type Options struct {
	// SettleDelay is how long a file must go without writes before it is
	// handled. Defaults to 500ms.
	SettleDelay time.Duration
}

// Watcher feeds report files from a directory to a Handler.
type Watcher struct {
	dir    string
	handle Handler
	logger *slog.Logger
	opts   Options

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for dir. Nothing is watched until Run.
func New(dir string, handle Handler, logger *slog.Logger, opts Options) *Watcher {
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		dir:     dir,
		handle:  handle,
		logger:  logger,
		opts:    opts,
		pending: make(map[string]*time.Timer),
	}
}

// Classify returns the mode for a report file name. Hidden files,
// temporary files and unknown prefixes are not reports.
func Classify(name string) (lifecycle.Mode, bool) {
	base := strings.ToLower(filepath.Base(name))
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, "~") {
		return "", false
	}
	for _, p := range []struct {
		prefix string
		mode   lifecycle.Mode
	}{
		{"recommend", lifecycle.ModeRecommend},
		{"hold", lifecycle.ModeHold},
		{"status", lifecycle.ModeSync},
		{"sync", lifecycle.ModeSync},
	} {
		if strings.HasPrefix(base, p.prefix) {
			return p.mode, true
		}
	}
	return "", false
}

// Sweep handles every report already in the directory, oldest name first.
func (w *Watcher) Sweep(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.process(ctx, filepath.Join(w.dir, name))
	}
	return nil
}

// Run sweeps the directory, then handles new reports until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return err
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	if err := w.Sweep(ctx); err != nil {
		return err
	}

	settled := make(chan string, 16)
	defer w.stopTimers()

	w.logger.Info("watching inbox", "dir", w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				w.debounce(ctx, ev.Name, settled)
			}
		case path := <-settled:
			w.process(ctx, path)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

// debounce (re)starts the settle timer for path.
func (w *Watcher) debounce(ctx context.Context, path string, settled chan<- string) {
	if _, ok := Classify(path); !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.opts.SettleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case settled <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// process hands one file to the handler and files it away.
func (w *Watcher) process(ctx context.Context, path string) {
	mode, ok := Classify(path)
	if !ok {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// Already moved by an earlier event.
		if !os.IsNotExist(err) {
			w.logger.Warn("reading report", "path", path, "error", err)
		}
		return
	}

	dest := ProcessedDir
	if err := w.handle(ctx, mode, path, string(data)); err != nil {
		w.logger.Error("report failed", "path", path, "mode", mode, "error", err)
		dest = FailedDir
	}
	target := filepath.Join(w.dir, dest, filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		w.logger.Warn("creating archive dir", "error", err)
		return
	}
	if err := os.Rename(path, target); err != nil {
		w.logger.Warn("archiving report", "path", path, "error", err)
	}
}
