package dirwalk

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestTagFromDirentType(t *testing.T) {
	cases := []struct {
		mode fs.FileMode
		want string
	}{
		{0, "file"},
		{fs.ModeDir, "directory"},
		{fs.ModeSymlink, "symlink"},
		{fs.ModeCharDevice, "chardevice"},
		{fs.ModeDevice, "blockdevice"},
		{fs.ModeNamedPipe, "fifo"},
		{fs.ModeSocket, "socket"},
		{fs.ModeIrregular, "unknown"},
	}
	for _, c := range cases {
		if got := tagFromDirentType(c.mode); got != c.want {
			t.Errorf("tagFromDirentType(%v) = %q, want %q", c.mode, got, c.want)
		}
	}
}

func TestTagFromMode(t *testing.T) {
	cases := []struct {
		mode uint32
		want string
	}{
		{unix.S_IFREG, "file"},
		{unix.S_IFDIR, "directory"},
		{unix.S_IFLNK, "symlink"},
		{unix.S_IFCHR, "chardevice"},
		{unix.S_IFBLK, "blockdevice"},
		{unix.S_IFIFO, "fifo"},
		{unix.S_IFSOCK, "socket"},
	}
	for _, c := range cases {
		if got := tagFromMode(c.mode); got != c.want {
			t.Errorf("tagFromMode(%#o) = %q, want %q", c.mode, got, c.want)
		}
	}
}

func TestHandleListSortsByRawNameAndSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"banana", "Apple", ".hidden", "zebra"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}

	result, perr := handleList(context.Background(), map[string]any{
		"path":           dir,
		"include_hidden": false,
	})
	if perr != nil {
		t.Fatalf("handleList: %+v", perr)
	}
	entries, ok := result.([]map[string]any)
	if !ok {
		t.Fatalf("expected []map[string]any, got %T", result)
	}

	var names []string
	for _, e := range entries {
		names = append(names, string(e["name"].([]byte)))
	}
	want := []string{"Apple", "banana", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("got names %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got names %v, want %v", names, want)
		}
	}
}

func TestHandleListIncludesDotEntriesWhenHiddenRequested(t *testing.T) {
	dir := t.TempDir()

	result, perr := handleList(context.Background(), map[string]any{
		"path":           dir,
		"include_hidden": true,
	})
	if perr != nil {
		t.Fatalf("handleList: %+v", perr)
	}
	entries := result.([]map[string]any)
	if len(entries) < 2 {
		t.Fatalf("expected at least . and .., got %d entries", len(entries))
	}
	if string(entries[0]["name"].([]byte)) != "." || string(entries[1]["name"].([]byte)) != ".." {
		t.Fatalf("expected . and .. first, got %v, %v", entries[0]["name"], entries[1]["name"])
	}
}

func TestHandleListMissingPathIsNotFound(t *testing.T) {
	_, perr := handleList(context.Background(), map[string]any{
		"path": filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if perr == nil {
		t.Fatal("expected an error for a missing path")
	}
}
