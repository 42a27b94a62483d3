// Package fsops implements the leaf filesystem and system-introspection
// operations left out of the core dispatcher's harder concerns:
// straightforward syscall wrappers the dispatcher routes to by method
// name, built directly against the standard library and
// golang.org/x/sys/unix.
package fsops

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

// Register installs every leaf filesystem and system method into disp.
func Register(disp *dispatch.Dispatcher) {
	disp.Register("file.stat", handleStat)
	disp.Register("file.stat_batch", handleStatBatch)
	disp.Register("file.exists", handleExists)
	disp.Register("file.readable", handleReadable)
	disp.Register("file.writable", handleWritable)
	disp.Register("file.executable", handleExecutable)
	disp.Register("file.truename", handleTruename)
	disp.Register("file.newer_than", handleNewerThan)

	disp.Register("file.read", handleRead)
	disp.Register("file.write", handleWrite)
	disp.Register("file.copy", handleCopy)
	disp.Register("file.rename", handleRename)
	disp.Register("file.delete", handleDelete)
	disp.Register("file.set_modes", handleSetModes)
	disp.Register("file.set_times", handleSetTimes)
	disp.Register("file.make_symlink", handleMakeSymlink)
	disp.Register("file.make_hardlink", handleMakeHardlink)
	disp.Register("file.chown", handleChown)

	disp.Register("dir.create", handleDirCreate)
	disp.Register("dir.remove", handleDirRemove)
	disp.Register("dir.completions", handleDirCompletions)

	disp.Register("system.info", handleSystemInfo)
	disp.Register("system.getenv", handleGetenv)
	disp.Register("system.expand_path", handleExpandPath)
	disp.Register("system.statvfs", handleStatvfs)
	disp.Register("system.groups", handleGroups)
}

func decodePath(params map[string]any, name string) (string, *protocol.Error) {
	path, err := pathval.Decode(params[name])
	if err != nil {
		return "", protocol.NewErrorf(protocol.CodeInvalidParams, "invalid %q: %v", name, err)
	}
	return path, nil
}

func statAttrs(path string) (map[string]any, *protocol.Error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return nil, translateErrno(path, err)
	}

	tag := tagFromMode(st.Mode)
	attrs := map[string]any{
		"type":   tag,
		"nlinks": st.Nlink,
		"uid":    st.Uid,
		"gid":    st.Gid,
		"atime":  time.Unix(st.Atim.Sec, st.Atim.Nsec),
		"mtime":  time.Unix(st.Mtim.Sec, st.Mtim.Nsec),
		"ctime":  time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
		"size":   st.Size,
		"mode":   st.Mode,
		"inode":  st.Ino,
		"dev":    st.Dev,
	}
	if tag == "symlink" {
		if target, err := os.Readlink(path); err == nil {
			attrs["link_target"] = target
		}
	}
	return attrs, nil
}

func tagFromMode(mode uint32) string {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return "file"
	case unix.S_IFDIR:
		return "directory"
	case unix.S_IFLNK:
		return "symlink"
	case unix.S_IFCHR:
		return "chardevice"
	case unix.S_IFBLK:
		return "blockdevice"
	case unix.S_IFIFO:
		return "fifo"
	case unix.S_IFSOCK:
		return "socket"
	default:
		return "unknown"
	}
}

func handleStat(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	return statAttrs(path)
}

func handleStatBatch(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	rawPaths, _ := params["paths"].([]any)
	results := make([]map[string]any, 0, len(rawPaths))
	for _, raw := range rawPaths {
		path, err := pathval.Decode(raw)
		if err != nil {
			results = append(results, map[string]any{"error": &protocol.Error{Code: protocol.CodeInvalidParams, Message: err.Error()}})
			continue
		}
		attrs, perr := statAttrs(path)
		if perr != nil {
			results = append(results, map[string]any{"error": perr})
			continue
		}
		results = append(results, map[string]any{"attrs": attrs})
	}
	return results, nil
}

func handleExists(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	_, err := os.Lstat(path)
	return map[string]any{"exists": err == nil}, nil
}

func handleReadable(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	return accessCheck(params, unix.R_OK)
}

func handleWritable(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	return accessCheck(params, unix.W_OK)
}

func handleExecutable(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	return accessCheck(params, unix.X_OK)
}

func accessCheck(params map[string]any, mode uint32) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	err := unix.Access(path, mode)
	return map[string]any{"ok": err == nil}, nil
}

func handleTruename(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{"path": resolved}, nil
}

func handleNewerThan(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	a, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	b, perr := decodePath(params, "other")
	if perr != nil {
		return nil, perr
	}
	aInfo, err := os.Stat(a)
	if err != nil {
		return nil, translateErrno(a, err)
	}
	bInfo, err := os.Stat(b)
	if err != nil {
		return nil, translateErrno(b, err)
	}
	return map[string]any{"newer": aInfo.ModTime().After(bInfo.ModTime())}, nil
}
