// Package watcher watches filing directories with fsnotify and reports debounced import and
// remove events for files that name a ticker and 10-K item.
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
	"github.com/hyperjump/finsum/internal/fileid"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Op is the kind of a watcher Event.
type Op int

const (
	// OpImport means the section file was created or changed and should be (re)imported.
	OpImport Op = iota
	// OpRemove means the section file was deleted.
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "import"
}

// Event reports a change to a section file.
type Event struct {
	Op   Op
	File fileid.SectionFile
}

// Handler receives events. Import events arrive on timer goroutines.
type Handler func(Event)

// Watcher watches filing directories and calls a Handler on section file changes.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	handler    Handler
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]*time.Timer
	started bool
	done    chan struct{}
	stop    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay quiet before its import event fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over roots. extensions filters files (empty means all).
func New(roots, extensions []string, recursive bool, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		handler:    handler,
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

// Start begins watching. Missing roots are created. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.roots {
		if err := os.MkdirAll(root, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := w.addTree(fsw, root); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.fsw = fsw
	w.started = true
	w.logger.Debug("watcher started",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

// addTree watches dir, and every directory below it when recursive.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	if !w.recursive {
		return fsw.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
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
			w.handle(fsw, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(fsw, path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
			w.syncDirectory(path)
			return
		}
		if f, ok := w.sectionFile(path); ok {
			w.schedule(f)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancel(path)
		if f, ok := w.sectionFile(path); ok && w.handler != nil {
			w.handler(Event{Op: OpRemove, File: f})
		}
	}
}

// sectionFile reports whether path passes the extension filter and names a section.
func (w *Watcher) sectionFile(path string) (fileid.SectionFile, bool) {
	if !matchExtension(path, w.extensions) {
		return fileid.SectionFile{}, false
	}
	f, err := fileid.Parse(path)
	if err != nil {
		w.logger.Debug("watcher ignoring file", zap.String("path", path), zap.Error(err))
		return fileid.SectionFile{}, false
	}
	return f, true
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

// schedule fires an import event for f once its file has been quiet for the debounce period.
func (w *Watcher) schedule(f fileid.SectionFile) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[f.Path]; ok {
		t.Stop()
	}
	w.pending[f.Path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, f.Path)
		w.mu.Unlock()
		w.logger.Debug("watcher importing section", zap.String("path", f.Path), zap.String("source", f.Source()))
		if w.handler != nil {
			w.handler(Event{Op: OpImport, File: f})
		}
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

// syncDirectory sends an import event for every section file under dir, synchronously.
func (w *Watcher) syncDirectory(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if f, ok := w.sectionFile(path); ok && w.handler != nil {
			w.handler(Event{Op: OpImport, File: f})
		}
		return nil
	})
}

// SyncExistingFiles sends an import event for every section file already present in the roots.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// Stop stops the watcher and drops pending imports.
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
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stop.Do(func() { close(w.done) })
}
