package fsops

import (
	"context"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

func handleRead(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{"data": data}, nil
}

func handleWrite(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	data, ok := params["data"].([]byte)
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"data\" must be binary")
	}
	mode := os.FileMode(0644)
	if raw, ok := params["mode"]; ok && raw != nil {
		if n, ok := toInt(raw); ok {
			mode = os.FileMode(n)
		}
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{"bytes_written": len(data)}, nil
}

func handleCopy(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	src, perr := decodePath(params, "source")
	if perr != nil {
		return nil, perr
	}
	dst, perr := decodePath(params, "destination")
	if perr != nil {
		return nil, perr
	}

	in, err := os.Open(src)
	if err != nil {
		return nil, translateErrno(src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, translateErrno(src, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return nil, translateErrno(dst, err)
	}
	defer out.Close()

	n, err := io.Copy(out, in)
	if err != nil {
		return nil, translateErrno(dst, err)
	}
	return map[string]any{"bytes_copied": n}, nil
}

func handleRename(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	src, perr := decodePath(params, "source")
	if perr != nil {
		return nil, perr
	}
	dst, perr := decodePath(params, "destination")
	if perr != nil {
		return nil, perr
	}
	if err := os.Rename(src, dst); err != nil {
		return nil, translateErrno(src, err)
	}
	return map[string]any{}, nil
}

func handleDelete(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	if err := os.Remove(path); err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{}, nil
}

func handleSetModes(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	mode, ok := toInt(params["mode"])
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"mode\" is required")
	}
	if err := os.Chmod(path, os.FileMode(mode)); err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{}, nil
}

func handleSetTimes(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	now := time.Now()
	atime, mtime := now, now
	if raw, ok := params["atime"]; ok {
		if t, ok := raw.(time.Time); ok {
			atime = t
		}
	}
	if raw, ok := params["mtime"]; ok {
		if t, ok := raw.(time.Time); ok {
			mtime = t
		}
	}
	if err := os.Chtimes(path, atime, mtime); err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{}, nil
}

func handleMakeSymlink(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	target, err := pathval.Decode(params["target"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"target\": %v", err)
	}
	linkPath, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	if err := os.Symlink(target, linkPath); err != nil {
		return nil, translateErrno(linkPath, err)
	}
	return map[string]any{}, nil
}

func handleMakeHardlink(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	target, perr := decodePath(params, "target")
	if perr != nil {
		return nil, perr
	}
	linkPath, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	if err := os.Link(target, linkPath); err != nil {
		return nil, translateErrno(linkPath, err)
	}
	return map[string]any{}, nil
}

func handleChown(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	uid, hasUID := toInt(params["uid"])
	gid, hasGID := toInt(params["gid"])
	if !hasUID {
		uid = -1
	}
	if !hasGID {
		gid = -1
	}
	if err := unix.Lchown(path, uid, gid); err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{}, nil
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
