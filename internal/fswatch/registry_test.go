package fswatch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryInsertRemoveListIdempotence(t *testing.T) {
	r := newRegistry()
	r.insert("/tmp/a", true)
	r.insert("/tmp/b", false)

	got := r.list()
	if len(got) != 2 || got["/tmp/a"] != true || got["/tmp/b"] != false {
		t.Fatalf("unexpected list contents: %+v", got)
	}

	if !r.removeExact("/tmp/a") {
		t.Fatal("expected first removal of /tmp/a to succeed")
	}
	if r.removeExact("/tmp/a") {
		t.Fatal("expected second removal of /tmp/a to report not-present")
	}
	if len(r.list()) != 1 {
		t.Fatalf("expected one entry remaining, got %+v", r.list())
	}
}

func TestRecursiveAncestorOf(t *testing.T) {
	r := newRegistry()
	r.insert("/watched/tree", true)
	r.insert("/watched/single", false)

	cases := map[string]bool{
		"/watched/tree":            true,
		"/watched/tree/sub":        true,
		"/watched/tree/sub/deeper": true,
		"/watched/single":          false,
		"/watched/single/sub":      false,
		"/unrelated":               false,
		"/watched/treesibling":     false,
	}
	for path, want := range cases {
		if got := r.recursiveAncestorOf(path); got != want {
			t.Errorf("recursiveAncestorOf(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestCanonicalizeResolvesSymlinksAndRelativePaths(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	if err := os.Mkdir(real, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	got, err := canonicalize(link)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	wantResolved, err := filepath.EvalSymlinks(real)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	if got != wantResolved {
		t.Fatalf("canonicalize(%q) = %q, want %q", link, got, wantResolved)
	}
}

func TestFallbackPathAbsolutizesWithoutResolving(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "does-not-exist")
	got, err := fallbackPath(missing)
	if err != nil {
		t.Fatalf("fallbackPath: %v", err)
	}
	if got != missing {
		t.Fatalf("fallbackPath(%q) = %q, want %q", missing, got, missing)
	}
}
