package fswatch

import (
	"context"

	"github.com/google/uuid"

	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

// handleAdd implements watch.add: canonicalize, register under the native
// watcher, remember (canonical, recursive) in the registry. The fixed
// watcherMu-then-registry lock order applies.
func (w *Watcher) handleAdd(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, err := pathval.Decode(params["path"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"path\": %v", err)
	}
	recursive := boolParam(params, "recursive", true)

	canonical, err := canonicalize(path)
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeFileNotFound, "unable to resolve path: %v", err)
	}

	w.watcherMu.Lock()
	var addErr error
	if recursive {
		addErr = w.addTreeLocked(canonical)
	} else {
		addErr = w.fsw.Add(canonical)
	}
	if addErr != nil {
		w.watcherMu.Unlock()
		return nil, protocol.NewErrorf(protocol.CodeIOError, "unable to register watch: %v", addErr)
	}

	w.reg.insert(canonical, recursive)
	w.watcherMu.Unlock()

	if w.log != nil {
		// uuid here is purely a diagnostic correlation id for this
		// particular add call's log lines; it never appears on the wire.
		w.log.WithField("watch_id", uuid.NewString()).WithField("path", canonical).Info("watch added")
	}

	return map[string]any{}, nil
}

// handleRemove implements watch.remove. It tries the canonical form of path
// first, then falls back to the raw (merely absolutized) path, since a
// deletion after registration can make canonicalization fail even though
// the registry entry, keyed by the canonical path captured at insertion
// time, still exists.
func (w *Watcher) handleRemove(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, err := pathval.Decode(params["path"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"path\": %v", err)
	}

	key := ""
	if canonical, cerr := canonicalize(path); cerr == nil {
		key = canonical
	}

	w.watcherMu.Lock()
	defer w.watcherMu.Unlock()

	var removed bool
	if key != "" {
		removed = w.reg.removeExact(key)
	}
	if !removed {
		if fallback, ferr := fallbackPath(path); ferr == nil {
			if w.reg.removeExact(fallback) {
				key = fallback
				removed = true
			}
		}
	}

	if !removed {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "no watch registered for: %s", path)
	}

	w.removeTreeLocked(key)

	return map[string]any{}, nil
}

// handleList implements watch.list.
func (w *Watcher) handleList(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	entries := w.reg.list()
	result := make([]map[string]any, 0, len(entries))
	for path, recursive := range entries {
		result = append(result, map[string]any{"path": path, "recursive": recursive})
	}
	return result, nil
}

func boolParam(params map[string]any, name string, def bool) bool {
	raw, ok := params[name]
	if !ok || raw == nil {
		return def
	}
	if b, ok := raw.(bool); ok {
		return b
	}
	return def
}
