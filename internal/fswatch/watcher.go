// Package fswatch implements a filesystem watcher and debouncer: a thin
// wrapper over an OS-native watch facility feeding a fixed 200ms
// coalescing window, with results pushed through the shared output writer
// as fs.changed notifications. Built on github.com/fsnotify/fsnotify,
// which only watches a single directory level, so recursive watching is
// layered on top with a manual walk-and-Add.
package fswatch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/protocol"
)

// pendingCapacity bounds the raw-event channel; once full, additional
// events are dropped and left for the debounce window to coalesce
// whatever did get through.
const pendingCapacity = 10000

// Watcher owns the OS-native watch handle, the canonical-path registry, and
// the background goroutines that forward and debounce events onto the
// shared output writer.
type Watcher struct {
	writer *protocol.Writer
	log    *logrus.Entry

	// watcherMu guards fsw.Add/fsw.Remove and watchCache. Lock order is
	// fixed: watcherMu before reg's internal mutex, honored by every call
	// site that needs both (watch.add and watch.remove); code that touches
	// only one of the two never needs to worry about the order.
	watcherMu  sync.Mutex
	fsw        *fsnotify.Watcher
	watchCache *lru.Cache

	reg *registry

	pending chan fsnotify.Event
}

// New creates a Watcher and starts its background goroutines. Cancel ctx to
// stop them; the caller is responsible for eventually calling Close.
func New(ctx context.Context, writer *protocol.Writer, log *logrus.Entry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create native watcher")
	}

	w := &Watcher{
		writer:  writer,
		log:     log,
		fsw:     fsw,
		reg:     newRegistry(),
		pending: make(chan fsnotify.Event, pendingCapacity),
	}
	w.watchCache = newWatchCache(func(path string) {
		_ = w.fsw.Remove(path)
	})

	go w.forward(ctx)
	go w.debounce(ctx)

	return w, nil
}

// Close releases the underlying OS watch handle.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Register installs watch.add, watch.remove, and watch.list into disp.
func (w *Watcher) Register(disp *dispatch.Dispatcher) {
	disp.Register("watch.add", w.handleAdd)
	disp.Register("watch.remove", w.handleRemove)
	disp.Register("watch.list", w.handleList)
}

// relevantOps is the mask of fsnotify operations that count as create,
// modify, or remove; Chmod alone (an access/metadata event) is dropped.
const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// forward drains the native watcher's event and error channels, filters out
// irrelevant operations, opportunistically extends recursive watches to
// newly created subdirectories, and feeds the bounded pending channel on a
// best-effort basis.
func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// No stderr output is permitted once the agent is serving; the
			// watcher pipeline is best-effort, so native watcher errors are
			// simply absorbed.
			_ = err
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&relevantOps == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				w.maybeWatchNewDirectory(event.Name)
			}
			select {
			case w.pending <- event:
			default:
				// Pending channel full: drop.
			}
		}
	}
}

// maybeWatchNewDirectory adds path (and any subdirectories beneath it) to
// the native watcher if it is a directory created under an existing
// recursive watch.
func (w *Watcher) maybeWatchNewDirectory(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if !w.reg.recursiveAncestorOf(path) {
		return
	}
	w.watcherMu.Lock()
	defer w.watcherMu.Unlock()
	_ = w.addTreeLocked(path)
}

// addTreeLocked walks root and adds every directory beneath it (including
// root) to the native watcher, registering each in watchCache so that a
// tree deeper than maxWatchedDirectories evicts its least-recently-added
// members instead of exhausting the OS's watch descriptor limit. Must be
// called with watcherMu held.
func (w *Watcher) addTreeLocked(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A directory vanishing mid-walk is not fatal to the watch as a
			// whole; skip it and continue.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return nil
		}
		w.watchCache.Add(path, struct{}{})
		return nil
	})
}

// removeTreeLocked removes root and every directory beneath it from the
// native watcher and watchCache. Must be called with watcherMu held.
func (w *Watcher) removeTreeLocked(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		_ = w.fsw.Remove(path)
		w.watchCache.Remove(path)
		return nil
	})
}
