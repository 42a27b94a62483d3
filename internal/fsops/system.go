package fsops

import (
	"context"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

func handleSystemInfo(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	hostname, _ := os.Hostname()
	return map[string]any{
		"os":       runtime.GOOS,
		"arch":     runtime.GOARCH,
		"hostname": hostname,
		"pid":      os.Getpid(),
	}, nil
}

func handleGetenv(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	name, ok := params["name"].(string)
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "\"name\" must be a string")
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return map[string]any{"value": nil}, nil
	}
	return map[string]any{"value": value}, nil
}

func handleExpandPath(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, err := pathval.Decode(params["path"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"path\": %v", err)
	}
	return map[string]any{"path": path}, nil
}

func handleStatvfs(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, perr := decodePath(params, "path")
	if perr != nil {
		return nil, perr
	}
	var statfs unix.Statfs_t
	if err := unix.Statfs(path, &statfs); err != nil {
		return nil, translateErrno(path, err)
	}
	return map[string]any{
		"block_size":       statfs.Bsize,
		"total_blocks":     statfs.Blocks,
		"free_blocks":      statfs.Bfree,
		"available_blocks": statfs.Bavail,
		"total_inodes":     statfs.Files,
		"free_inodes":      statfs.Ffree,
	}, nil
}

func handleGroups(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	groups, err := unix.Getgroups()
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeIOError, "unable to read groups: %v", err)
	}
	return map[string]any{"gids": groups}, nil
}
