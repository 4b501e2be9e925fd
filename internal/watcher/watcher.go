// Package watcher watches inbox directories with fsnotify and hands each new or
// rewritten batch file to a handler once writes have settled.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before it is handled.
const DefaultDebounce = 400 * time.Millisecond

// Handler is called with the path of a settled batch file.
type Handler func(ctx context.Context, path string)

// Config selects what the watcher observes.
type Config struct {
	Directories []string
	Extensions  []string // empty matches every file
	Recursive   bool
	Debounce    time.Duration
}

// Watcher watches inbox directories and invokes a handler per settled file.
type Watcher struct {
	cfg     Config
	handle  Handler
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*time.Timer
	started  bool
	ctx      context.Context
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output (directory changes, file events, etc.).
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a watcher that calls handle for every matching file.
func New(cfg Config, handle Handler, opts ...Option) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	w := &Watcher{
		cfg:     cfg,
		handle:  handle,
		logger:  zap.NewNop(),
		pending: make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start watches the configured directories, creating missing ones, then hands
// every file already present to the handler. It runs until ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	for _, dir := range w.cfg.Directories {
		if err := w.addTree(fw, dir); err != nil {
			_ = fw.Close()
			w.mu.Unlock()
			return err
		}
	}
	w.watcher = fw
	w.started = true
	w.ctx = ctx
	w.mu.Unlock()

	w.logger.Info("watching inbox",
		zap.Strings("directories", w.cfg.Directories),
		zap.Strings("extensions", w.cfg.Extensions),
		zap.Bool("recursive", w.cfg.Recursive),
	)
	go w.run(ctx, fw)
	for _, dir := range w.cfg.Directories {
		w.syncDirectory(dir)
	}
	return nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.cfg.Recursive {
		return fw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(fw, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			if w.cfg.Recursive {
				if err := w.addTree(fw, path); err != nil {
					w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
				}
				w.syncDirectory(path)
			}
			return
		}
		if matchExtension(path, w.cfg.Extensions) {
			w.schedule(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// schedule (re)starts the quiet-period timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
		w.mu.Lock()
		if _, ok := w.pending[path]; !ok {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		ctx := w.ctx
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		w.logger.Debug("handling batch file", zap.String("path", path))
		w.handle(ctx, path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// syncDirectory schedules every matching file under root.
func (w *Watcher) syncDirectory(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if matchExtension(path, w.cfg.Extensions) {
			w.schedule(path)
		}
		return nil
	})
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// Directories returns the watched inbox directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.cfg.Directories...)
}

// Stop stops watching, drops pending files and waits for running handlers.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.started = false
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}
