package aggregate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

// magitStateFiles is the set of paths, relative to the git directory, that
// a magit-status buffer checks for existence to render rebase/bisect/merge
// banners and the stash/notes indicators.
var magitStateFiles = []string{
	"MERGE_HEAD", "REVERT_HEAD", "CHERRY_PICK_HEAD", "ORIG_HEAD", "FETCH_HEAD", "AUTO_MERGE", "SQUASH_MSG",
	"BISECT_LOG", "BISECT_CMD_OUTPUT", "BISECT_TERMS",
	"rebase-merge", "rebase-merge/git-rebase-todo", "rebase-merge/done", "rebase-merge/onto",
	"rebase-merge/orig-head", "rebase-merge/head-name", "rebase-merge/amend", "rebase-merge/stopped-sha",
	"rebase-merge/rewritten-pending",
	"rebase-apply", "rebase-apply/onto", "rebase-apply/head-name", "rebase-apply/applying",
	"rebase-apply/original-commit", "rebase-apply/rewritten",
	"sequencer", "sequencer/todo", "sequencer/head",
	"HEAD", "config", "index", "refs/stash", "info/exclude", "NOTES_MERGE_WORKTREE",
}

// handleMagitStatus implements magit.status: a single RPC call that fans
// out the independent git subcommands a magit-status buffer needs and
// assembles one nested result, rather than making the client issue dozens
// of round trips of its own. Independent commands run concurrently; the
// two ahead/behind counts are deferred to a second wave since they depend
// on whether an upstream or push branch was found in the first.
func handleMagitStatus(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	directory, err := pathval.Decode(params["directory"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"directory\": %v", err)
	}
	if _, statErr := os.Stat(directory); statErr != nil {
		return nil, protocol.NewErrorf(protocol.CodeFileNotFound, "unable to resolve directory: %v", statErr)
	}

	toplevel := gitString(ctx, directory, "rev-parse", "--show-toplevel")
	gitdir := gitString(ctx, directory, "rev-parse", "--git-dir")

	var (
		headHash, headShort, headBranch, headMessage *string
		upstreamBranch, pushBranch                   *string
		stagedDiff, unstagedDiff                     []byte
		stagedStat, unstagedStat                     *string
		untracked                                    []string
		tagAtHead, tagContains                       *string
		remotes                                      []string
		config                                       map[string]any
		stateFiles                                   map[string]any
		state                                         any
		configList                                    []byte
		describeLong, describeContains                *string
		statusPorcelain                               []byte
		configUntracked                               *string
		stashReflog                                   []byte
		headParentShort, headParentTen                *string
		recentDecorated                                []byte
	)

	var wg sync.WaitGroup
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	run(func() { headHash = gitString(ctx, directory, "rev-parse", "HEAD") })
	run(func() { headShort = gitString(ctx, directory, "rev-parse", "--short", "HEAD") })
	run(func() { headBranch = gitString(ctx, directory, "symbolic-ref", "--short", "HEAD") })
	run(func() { headMessage = gitString(ctx, directory, "log", "-1", "--format=%s", "HEAD") })
	run(func() { upstreamBranch = gitString(ctx, directory, "rev-parse", "--abbrev-ref", "@{upstream}") })
	run(func() { pushBranch = gitString(ctx, directory, "rev-parse", "--abbrev-ref", "@{push}") })
	// Staged/unstaged diffs use magit's exact flags so the client-side
	// diff parser behaves identically to a local buffer.
	run(func() {
		stagedDiff = gitOutput(ctx, directory, "diff", "--ita-visible-in-index", "--cached", "--no-ext-diff", "--no-prefix", "--")
	})
	run(func() { stagedStat = gitString(ctx, directory, "diff", "--cached", "--stat", "--no-color") })
	run(func() {
		unstagedDiff = gitOutput(ctx, directory, "diff", "--ita-visible-in-index", "--no-ext-diff", "--no-prefix", "--")
	})
	run(func() { unstagedStat = gitString(ctx, directory, "diff", "--stat", "--no-color") })
	run(func() {
		untracked = gitLines(ctx, directory, "ls-files", "--others", "--exclude-standard", "--directory", "--no-empty-directory")
	})
	run(func() { tagAtHead = gitString(ctx, directory, "describe", "--tags", "--exact-match", "HEAD") })
	run(func() { tagContains = gitString(ctx, directory, "describe", "--tags", "--abbrev=0") })
	run(func() { remotes = gitLines(ctx, directory, "remote") })
	run(func() { config = collectGitConfig(ctx, directory) })
	run(func() { stateFiles = collectStateFiles(directory, gitdir) })
	run(func() { state = detectRepoState(directory, gitdir) })
	run(func() { configList = gitOutput(ctx, directory, "config", "--list", "-z") })
	run(func() { describeLong = gitString(ctx, directory, "describe", "--long", "--tags") })
	run(func() { describeContains = gitString(ctx, directory, "describe", "--contains", "HEAD") })
	run(func() {
		statusPorcelain = gitOutput(ctx, directory, "status", "-z", "--porcelain", "--untracked-files=normal", "--")
	})
	run(func() {
		configUntracked = gitString(ctx, directory, "config", "--local", "-z", "--get-all", "--include", "status.showUntrackedFiles")
	})
	run(func() {
		stashReflog = gitOutput(ctx, directory, "reflog", "--format=%gd%x00%aN%x00%at%x00%gs", "refs/stash")
	})
	run(func() { headParentShort = gitString(ctx, directory, "rev-parse", "--short", "HEAD~") })
	run(func() { headParentTen = gitString(ctx, directory, "rev-parse", "--verify", "HEAD~10") })
	run(func() {
		recentDecorated = gitOutput(ctx, directory, "log", "--format=%h%x0c%D%x0c%x0c%aN%x0c%at%x0c%x0c%s", "--decorate=full", "-n10", "--use-mailmap", "--no-prefix", "--")
	})

	wg.Wait()

	var upstreamAhead, upstreamBehind, pushAhead, pushBehind *int
	var wg2 sync.WaitGroup
	if upstreamBranch != nil {
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			upstreamAhead, upstreamBehind = parseAheadBehind(gitString(ctx, directory, "rev-list", "--count", "--left-right", "@{upstream}...HEAD"))
		}()
	}
	if pushBranch != nil {
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			pushAhead, pushBehind = parseAheadBehind(gitString(ctx, directory, "rev-list", "--count", "--left-right", "@{push}...HEAD"))
		}()
	}
	wg2.Wait()

	return map[string]any{
		"toplevel": strPtr(toplevel),
		"gitdir":   strPtr(gitdir),
		"head": map[string]any{
			"hash":    strPtr(headHash),
			"short":   strPtr(headShort),
			"branch":  strPtr(headBranch),
			"message": strPtr(headMessage),
		},
		"upstream": map[string]any{
			"branch": strPtr(upstreamBranch),
			"ahead":  intPtr(upstreamAhead),
			"behind": intPtr(upstreamBehind),
		},
		"push": map[string]any{
			"branch": strPtr(pushBranch),
			"ahead":  intPtr(pushAhead),
			"behind": intPtr(pushBehind),
		},
		"state": state,
		"staged": map[string]any{
			"diff": stagedDiff,
			"stat": strPtr(stagedStat),
		},
		"unstaged": map[string]any{
			"diff": unstagedDiff,
			"stat": strPtr(unstagedStat),
		},
		"untracked":         untracked,
		"tags":              map[string]any{"at_head": strPtr(tagAtHead), "latest": strPtr(tagContains)},
		"remotes":           remotes,
		"config":            config,
		"state_files":       stateFiles,
		"config_list":       configList,
		"describe_long":     strPtr(describeLong),
		"describe_contains": strPtr(describeContains),
		"status_porcelain":  statusPorcelain,
		"config_untracked":  strPtr(configUntracked),
		"stash_reflog":      stashReflog,
		"head_parent_short": strPtr(headParentShort),
		"head_parent_10":    strPtr(headParentTen),
		"recent_decorated":  recentDecorated,
	}, nil
}

// detectRepoState inspects the filesystem markers git leaves behind during
// an in-progress rebase, am, merge, cherry-pick, revert, or bisect, in the
// same precedence order git itself checks them. Returns nil when the
// repository isn't mid-operation.
func detectRepoState(directory string, gitdir *string) any {
	dir := resolveGitdir(directory, gitdir)
	switch {
	case pathExists(filepath.Join(dir, "rebase-merge")):
		if pathExists(filepath.Join(dir, "rebase-merge", "interactive")) {
			return "rebase-interactive"
		}
		return "rebase-merge"
	case pathExists(filepath.Join(dir, "rebase-apply")):
		if pathExists(filepath.Join(dir, "rebase-apply", "applying")) {
			return "am"
		}
		return "rebase-apply"
	case pathExists(filepath.Join(dir, "MERGE_HEAD")):
		return "merge"
	case pathExists(filepath.Join(dir, "CHERRY_PICK_HEAD")):
		return "cherry-pick"
	case pathExists(filepath.Join(dir, "REVERT_HEAD")):
		return "revert"
	case pathExists(filepath.Join(dir, "BISECT_LOG")):
		return "bisect"
	default:
		return nil
	}
}

// resolveGitdir applies git's own rule for interpreting `rev-parse
// --git-dir`'s output: absolute as-is, relative joined against directory,
// and "directory/.git" when the lookup itself failed.
func resolveGitdir(directory string, gitdir *string) string {
	if gitdir != nil {
		if filepath.IsAbs(*gitdir) {
			return *gitdir
		}
		return filepath.Join(directory, *gitdir)
	}
	return filepath.Join(directory, ".git")
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// collectGitConfig reads the handful of config values a magit-status
// buffer's header needs.
func collectGitConfig(ctx context.Context, directory string) map[string]any {
	return map[string]any{
		"user.name":         strPtr(gitString(ctx, directory, "config", "user.name")),
		"user.email":        strPtr(gitString(ctx, directory, "config", "user.email")),
		"remote.origin.url": strPtr(gitString(ctx, directory, "config", "remote.origin.url")),
		"core.bare":         strPtr(gitString(ctx, directory, "config", "--bool", "--default", "false", "core.bare")),
	}
}

// collectStateFiles reports, for each path in magitStateFiles, whether it
// exists relative to the resolved git directory.
func collectStateFiles(directory string, gitdir *string) map[string]any {
	dir := resolveGitdir(directory, gitdir)
	out := make(map[string]any, len(magitStateFiles))
	for _, f := range magitStateFiles {
		out[f] = pathExists(filepath.Join(dir, f))
	}
	return out
}

// gitString runs git in directory and returns trimmed stdout, or nil if
// the command failed or produced no output.
func gitString(ctx context.Context, directory string, args ...string) *string {
	out := gitOutput(ctx, directory, args...)
	if out == nil {
		return nil
	}
	s := strings.TrimSpace(string(out))
	if s == "" {
		return nil
	}
	return &s
}

// gitOutput runs git in directory and returns raw stdout, or nil if the
// command failed or produced no output.
func gitOutput(ctx context.Context, directory string, args ...string) []byte {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = directory
	out, err := cmd.Output()
	if err != nil || len(out) == 0 {
		return nil
	}
	return out
}

// gitLines runs git in directory and splits its trimmed stdout into lines.
func gitLines(ctx context.Context, directory string, args ...string) []string {
	s := gitString(ctx, directory, args...)
	if s == nil {
		return nil
	}
	return strings.Split(*s, "\n")
}

// parseAheadBehind parses the two whitespace-separated counts from
// `rev-list --left-right --count X...HEAD` output: the left (behind) count
// first, the right (ahead) count second. Either half parses independently,
// so one side can come back nil without invalidating the other.
func parseAheadBehind(output *string) (ahead, behind *int) {
	if output == nil {
		return nil, nil
	}
	parts := strings.Fields(*output)
	if len(parts) != 2 {
		return nil, nil
	}
	if b, err := strconv.Atoi(parts[0]); err == nil {
		behind = &b
	}
	if a, err := strconv.Atoi(parts[1]); err == nil {
		ahead = &a
	}
	return ahead, behind
}

func strPtr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intPtr(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
