// Package watcher reloads layers when their files change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is what happened to a layer file.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a debounced change to one layer file.
type Event struct {
	Path      string
	Operation Operation
}

// Handler is called once per debounced layer event.
type Handler func(ctx context.Context, event Event) error

// Filter reports whether a path is a layer file.
type Filter func(path string) bool

// Config holds watcher configuration.
type Config struct {
	Paths    []string
	Debounce time.Duration // default 500ms
	Filter   Filter        // default: every file
}

// companions are the shapefile side files. A change to one of them is
// reported as a modification of the .shp it belongs to.
var companions = map[string]bool{".dbf": true, ".shx": true, ".prj": true, ".cpg": true}

// flushEvery is how often quiet paths are checked for.
const flushEvery = 100 * time.Millisecond

type change struct {
	at time.Time
	op Operation
}

// Watcher turns bursts of fsnotify events on layer files into one
// handler call per file.
type Watcher struct {
	fs       *fsnotify.Watcher
	handler  Handler
	filter   Filter
	logger   *slog.Logger
	paths    []string
	debounce time.Duration
	now      func() time.Time

	mu      sync.Mutex
	changes map[string]change
	wg      sync.WaitGroup
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.Filter == nil {
		cfg.Filter = func(string) bool { return true }
	}
	return &Watcher{
		fs:       fs,
		handler:  handler,
		filter:   cfg.Filter,
		logger:   logger,
		paths:    cfg.Paths,
		debounce: cfg.Debounce,
		now:      time.Now,
		changes:  make(map[string]change),
	}, nil
}

// Start watches the configured directories until ctx is done or Stop is
// called. Directories that cannot be watched are logged and skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, p := range w.paths {
		if err := w.AddPath(p); err != nil {
			w.logger.Warn("failed to watch path", "path", p, "error", err)
		}
	}
	go w.run(ctx)
	return nil
}

// Stop closes the underlying watcher and waits for running handlers.
func (w *Watcher) Stop() error {
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

// AddPath watches one more directory.
func (w *Watcher) AddPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.fs.Add(abs); err != nil {
		return err
	}
	w.logger.Info("watching directory", "path", abs)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	tick := time.NewTicker(flushEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.record(ev.Name, operationOf(ev.Op))
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case <-tick.C:
			w.flush(ctx)
		}
	}
}

// record notes a change and restarts the quiet period for its layer.
func (w *Watcher) record(path string, op Operation) {
	path, op, ok := w.layerEvent(path, op)
	if !ok {
		return
	}
	w.logger.Debug("file event", "path", path, "op", op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, seen := w.changes[path]; seen {
		op = merge(prev.op, op)
	}
	w.changes[path] = change{at: w.now(), op: op}
}

// layerEvent maps a raw path to the layer file it concerns.
func (w *Watcher) layerEvent(path string, op Operation) (string, Operation, bool) {
	if w.filter(path) {
		return path, op, true
	}
	ext := filepath.Ext(path)
	if !companions[strings.ToLower(ext)] {
		return "", op, false
	}
	shp := strings.TrimSuffix(path, ext) + ".shp"
	if !w.filter(shp) {
		return "", op, false
	}
	return shp, OpModify, true
}

// merge combines two operations on the same path within one quiet period.
// A delete followed by a create is a replacement.
func merge(prev, next Operation) Operation {
	switch {
	case prev == OpDelete && next == OpCreate:
		return OpCreate
	case next == OpDelete:
		return OpDelete
	case prev == OpCreate:
		return OpCreate
	default:
		return next
	}
}

// due removes and returns the changes that have been quiet for the
// debounce interval.
func (w *Watcher) due() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var events []Event
	for path, c := range w.changes {
		if now.Sub(c.at) < w.debounce {
			continue
		}
		delete(w.changes, path)
		events = append(events, Event{Path: path, Operation: c.op})
	}
	return events
}

func (w *Watcher) flush(ctx context.Context) {
	for _, e := range w.due() {
		w.logger.Info("layer file changed", "path", e.Path, "operation", e.Operation.String())

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.handler(ctx, e); err != nil {
				w.logger.Error("layer reload failed",
					"path", e.Path,
					"operation", e.Operation.String(),
					"error", err,
				)
			}
		}()
	}
}

// operationOf classifies an fsnotify op. A rename is reported as a delete
// because the file is gone from its watched name.
func operationOf(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
