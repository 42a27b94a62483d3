package fswatch

import "github.com/golang/groupcache/lru"

// maxWatchedDirectories bounds how many directories a recursive watch will
// keep an active native watch descriptor on at once. A deep or very wide
// tree walked by addTreeLocked could otherwise accumulate far more watch
// descriptors than the OS allows per user; beyond this bound, the
// least-recently-touched directory's watch is evicted to make room for the
// next one, mirroring the LRU eviction the non-recursive inotify watcher
// uses to stay under the kernel's per-user watch limit.
const maxWatchedDirectories = 8192

// newWatchCache builds an LRU cache of watched directory paths that calls
// unwatch on whichever path is evicted to make room for a newly added one.
func newWatchCache(unwatch func(path string)) *lru.Cache {
	cache := lru.New(maxWatchedDirectories)
	cache.OnEvicted = func(key lru.Key, _ interface{}) {
		if path, ok := key.(string); ok {
			unwatch(path)
		}
	}
	return cache
}
