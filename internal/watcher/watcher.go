// Package watcher pre-warms the extraction cache when corpus files appear or change.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/transmatch/internal/corpus"
	"github.com/hyperjump/transmatch/internal/extract"
	"github.com/hyperjump/transmatch/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Root is a corpus folder and the side its documents belong to.
type Root struct {
	Path string
	Side models.CorpusSide
}

// Handler is called once per settled file change.
type Handler func(ctx context.Context, path string, side models.CorpusSide)

// Resolver is satisfied by *cache.Cache.
type Resolver interface {
	Resolve(ctx context.Context, path string, side models.CorpusSide) (*models.Document, bool, error)
}

// CacheHandler returns a Handler that extracts changed files through r.
func CacheHandler(r Resolver, logger *zap.Logger) Handler {
	return func(ctx context.Context, path string, side models.CorpusSide) {
		doc, hit, err := r.Resolve(ctx, path, side)
		if err != nil {
			var ee *extract.ExtractionError
			if errors.As(err, &ee) {
				logger.Warn("pre-warm extraction failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Error("pre-warm failed", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("corpus file pre-warmed",
			zap.String("file", doc.DisplayName), zap.String("side", string(side)), zap.Bool("cached", hit))
	}
}

// Watcher watches corpus roots and hands settled file changes to a Handler.
type Watcher struct {
	roots      []Root
	extensions []string
	recursive  bool
	handle     Handler
	busy       func() bool
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	ctx     context.Context
	done    chan struct{}
	stop    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithBusy makes the watcher skip changes while busy returns true, e.g. during a run.
func WithBusy(busy func() bool) Option {
	return func(w *Watcher) { w.busy = busy }
}

// New returns a watcher over roots. extensions filters files; empty accepts all.
func New(roots []Root, extensions []string, recursive bool, handle Handler, opts ...Option) *Watcher {
	w := &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		handle:     handle,
		debounce:   defaultDebounce,
		logger:     zap.NewNop(),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Roots that do not exist are skipped with a warning.
// It returns once the watches are registered; events are handled until ctx is done or Stop.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.fsw = fsw
	w.ctx = ctx
	w.mu.Unlock()

	for _, root := range w.roots {
		if root.Path == "" {
			continue
		}
		if _, err := os.Stat(root.Path); err != nil {
			w.logger.Warn("corpus folder not watched", zap.String("path", root.Path), zap.Error(err))
			continue
		}
		if err := w.addTree(fsw, root.Path); err != nil {
			_ = fsw.Close()
			return err
		}
		w.logger.Info("watching corpus folder",
			zap.String("path", root.Path), zap.String("side", string(root.Side)), zap.Bool("recursive", w.recursive))
	}
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	side, ok := w.sideOf(path)
	if !ok {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) && w.recursive {
				w.newDirectory(path, side)
			}
			return
		}
		if corpus.Allowed(path, w.extensions) {
			w.schedule(path, side)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// newDirectory watches a folder created or moved under a root and schedules its files.
func (w *Watcher) newDirectory(dir string, side models.CorpusSide) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	if err := w.addTree(fsw, dir); err != nil {
		w.logger.Debug("failed to watch new folder", zap.String("path", dir), zap.Error(err))
	}
	files, err := corpus.Scan(context.Background(), dir, w.extensions)
	if err != nil {
		return
	}
	for _, f := range files {
		w.schedule(f, side)
	}
}

// sideOf returns the side of the root containing path.
func (w *Watcher) sideOf(path string) (models.CorpusSide, bool) {
	clean := filepath.Clean(path)
	for _, r := range w.roots {
		if r.Path == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(r.Path), clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return r.Side, true
	}
	return "", false
}

func (w *Watcher) schedule(path string, side models.CorpusSide) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		ctx := w.ctx
		w.mu.Unlock()
		if w.busy != nil && w.busy() {
			w.logger.Debug("pipeline running, pre-warm skipped", zap.String("path", path))
			return
		}
		w.handle(ctx, path, side)
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

// Pending returns the number of changes waiting for their debounce to expire.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stop stops watching and drops pending changes.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		w.mu.Lock()
		for path, t := range w.pending {
			t.Stop()
			delete(w.pending, path)
		}
		if w.fsw != nil {
			_ = w.fsw.Close()
			w.fsw = nil
		}
		w.mu.Unlock()
		close(w.done)
	})
}
