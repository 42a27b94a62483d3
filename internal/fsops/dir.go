package fsops

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/hostagent/hostagent/internal/protocol"
)

func handleDirCreate(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	mode := os.FileMode(0755)
	if raw, ok := params["mode"]; ok && raw != nil {
		if n, ok := toInt(raw); ok {
			mode = os.FileMode(n)
		}
	}
	parents := false
	if raw, ok := params["parents"].(bool); ok {
		parents = raw
	}

	var err error
	if parents {
		err = os.MkdirAll(path, mode)
	} else {
		err = os.Mkdir(path, mode)
	}
	if err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{}, nil
}

func handleDirRemove(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	recursive := false
	if raw, ok := params["recursive"].(bool); ok {
		recursive = raw
	}

	var err error
	if recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{}, nil
}

// handleDirCompletions implements dir.completions: list the names in the
// parent of a partial path prefix that begin with the prefix's final
// component, for editor path-completion UIs.
func handleDirCompletions(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	prefix, perr := decodePath(params, "prefix")
	if perr != nil {
		return nil, perr
	}

	dir := prefix
	base := ""
	if idx := strings.LastIndexByte(prefix, '/'); idx >= 0 {
		dir = prefix[:idx+1]
		base = prefix[idx+1:]
	} else {
		dir = "."
		base = prefix
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, translateErrno(dir, err)
	}

	matches := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, base) {
			if entry.IsDir() {
				name += "/"
			}
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)

	return map[string]any{"matches": matches}, nil
}
