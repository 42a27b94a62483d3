package aggregate

import (
	"os"
	"path/filepath"
	"testing"
)

func strp(s string) *string { return &s }

func TestParseAheadBehind(t *testing.T) {
	cases := []struct {
		name       string
		in         *string
		wantAhead  *int
		wantBehind *int
	}{
		{"nil", nil, nil, nil},
		{"malformed", strp("not-a-count"), nil, nil},
		{"wrong field count", strp("1 2 3"), nil, nil},
		{"well formed", strp("3\t5"), intp(5), intp(3)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ahead, behind := parseAheadBehind(c.in)
			if !intPtrEqual(ahead, c.wantAhead) || !intPtrEqual(behind, c.wantBehind) {
				t.Errorf("parseAheadBehind(%v) = (%v, %v), want (%v, %v)", c.in, ahead, behind, c.wantAhead, c.wantBehind)
			}
		})
	}
}

func intp(n int) *int { return &n }

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestResolveGitdir(t *testing.T) {
	cases := []struct {
		name      string
		directory string
		gitdir    *string
		want      string
	}{
		{"absolute gitdir used as-is", "/repo", strp("/elsewhere/.git"), "/elsewhere/.git"},
		{"relative gitdir joined with directory", "/repo", strp(".git"), "/repo/.git"},
		{"missing gitdir defaults to directory/.git", "/repo", nil, "/repo/.git"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := resolveGitdir(c.directory, c.gitdir); got != c.want {
				t.Errorf("resolveGitdir(%q, %v) = %q, want %q", c.directory, c.gitdir, got, c.want)
			}
		})
	}
}

func TestDetectRepoStatePrecedence(t *testing.T) {
	dir := t.TempDir()

	if state := detectRepoState(dir, nil); state != nil {
		t.Fatalf("expected nil state for clean directory, got %v", state)
	}

	gitdir := filepath.Join(dir, ".git")
	if err := os.MkdirAll(gitdir, 0o755); err != nil {
		t.Fatal(err)
	}

	mustTouch(t, filepath.Join(gitdir, "MERGE_HEAD"))
	if state := detectRepoState(dir, nil); state != "merge" {
		t.Fatalf("expected \"merge\", got %v", state)
	}

	// rebase-merge takes precedence over a lingering MERGE_HEAD, matching
	// the order the original checks them in.
	if err := os.MkdirAll(filepath.Join(gitdir, "rebase-merge"), 0o755); err != nil {
		t.Fatal(err)
	}
	if state := detectRepoState(dir, nil); state != "rebase-merge" {
		t.Fatalf("expected \"rebase-merge\" to take precedence, got %v", state)
	}

	mustTouch(t, filepath.Join(gitdir, "rebase-merge", "interactive"))
	if state := detectRepoState(dir, nil); state != "rebase-interactive" {
		t.Fatalf("expected \"rebase-interactive\", got %v", state)
	}
}

func TestCollectStateFilesReportsExistenceOnly(t *testing.T) {
	dir := t.TempDir()
	gitdir := filepath.Join(dir, ".git")
	if err := os.MkdirAll(gitdir, 0o755); err != nil {
		t.Fatal(err)
	}
	mustTouch(t, filepath.Join(gitdir, "HEAD"))

	files := collectStateFiles(dir, nil)
	if files["HEAD"] != true {
		t.Errorf("expected HEAD to report true, got %v", files["HEAD"])
	}
	if files["MERGE_HEAD"] != false {
		t.Errorf("expected MERGE_HEAD to report false, got %v", files["MERGE_HEAD"])
	}
	if len(files) != len(magitStateFiles) {
		t.Errorf("expected %d entries, got %d", len(magitStateFiles), len(files))
	}
}

func TestStrPtrAndIntPtr(t *testing.T) {
	if got := strPtr(nil); got != nil {
		t.Errorf("strPtr(nil) = %v, want nil", got)
	}
	if got := strPtr(strp("x")); got != "x" {
		t.Errorf("strPtr(&\"x\") = %v, want \"x\"", got)
	}
	if got := intPtr(nil); got != nil {
		t.Errorf("intPtr(nil) = %v, want nil", got)
	}
	if got := intPtr(intp(7)); got != 7 {
		t.Errorf("intPtr(&7) = %v, want 7", got)
	}
}

func mustTouch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}
