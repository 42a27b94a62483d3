// Package ptysup implements a PTY-backed process supervisor: a keyed table
// of managed children attached to a pseudo-terminal master, with proper
// session leadership and controlling terminal setup on the child side,
// grounded on github.com/creack/pty.
package ptysup

import (
	"os"
	"os/exec"
	"sync"
)

// firstKey is the start of the PTY key space, disjoint from the pipe
// process table's key space.
const firstKey = 10000

// Entry is one managed PTY-attached child.
type Entry struct {
	key     int
	cmd     string
	pid     int
	ttyName string
	master  *os.File
	command *exec.Cmd

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// Key returns the entry's stable handle.
func (e *Entry) Key() int { return e.key }

// Table is the PTY process-table singleton, mirroring procsup.Table but
// with a disjoint, higher-numbered key space.
type Table struct {
	mu      sync.Mutex
	nextKey int
	entries map[int]*Entry
}

// NewTable creates an empty PTY process table.
func NewTable() *Table {
	return &Table{nextKey: firstKey, entries: make(map[int]*Entry)}
}

func (t *Table) insert(entry *Entry) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := t.nextKey
	t.nextKey++
	entry.key = key
	t.entries[key] = entry
	return key
}

func (t *Table) lookup(key int) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	return entry, ok
}

// remove deletes key from the table and closes the entry's master
// descriptor, satisfying the cleanup invariant that the master is owned by
// the entry and closed exactly when the entry is removed.
func (t *Table) remove(key int) {
	t.mu.Lock()
	entry, ok := t.entries[key]
	delete(t.entries, key)
	t.mu.Unlock()
	if ok {
		_ = entry.master.Close()
	}
}

func (t *Table) snapshot() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]*Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		result = append(result, entry)
	}
	return result
}
