// Package dirwalk implements a directory walker: dirent-type-byte
// enumeration with an optional directory-fd-relative stat pass, run under
// a single background execution slot so it never ties up the reactor
// thread. Per-entry operations work against a directory descriptor
// (Fstatat/Readlinkat) rather than building full paths for every entry.
package dirwalk

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/hostagent/hostagent/internal/dispatch"
	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

// slot is the single background execution slot dir.list calls share, so
// enumeration never runs on the reactor thread. A buffered channel of
// capacity one is the idiomatic Go substitute for a dedicated
// single-worker blocking thread pool.
var slot = make(chan struct{}, 1)

func init() {
	slot <- struct{}{}
}

// Register installs dir.list into disp.
func Register(disp *dispatch.Dispatcher) {
	disp.Register("dir.list", handleList)
}

// readlinkInitialBufferSize mirrors the growth strategy used when reading
// symbolic link targets relative to a directory descriptor.
const readlinkInitialBufferSize = 128

func handleList(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	path, err := pathval.Decode(params["path"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"path\": %v", err)
	}
	includeAttrs := boolParam(params, "include_attrs", false)
	includeHidden := boolParam(params, "include_hidden", true)

	select {
	case <-slot:
	case <-ctx.Done():
		return nil, protocol.NewError(protocol.CodeInternalError, "request context ended while waiting for directory walker slot")
	}
	defer func() { slot <- struct{}{} }()

	dir, err := os.Open(path)
	if err != nil {
		return nil, translateOpenError(path, err)
	}
	defer dir.Close()

	var attrFd int
	if includeAttrs {
		attrFd, err = unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
		if err != nil {
			return nil, protocol.IOErrorWithErrno("unable to open directory for attribute access", errnoOf(err))
		}
		defer unix.Close(attrFd)
	}

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, protocol.IOErrorWithErrno("unable to enumerate directory", errnoOf(err))
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare([]byte(entries[i].Name()), []byte(entries[j].Name())) < 0
	})

	dirFd := int(dir.Fd())
	results := make([]map[string]any, 0, len(entries)+2)
	if includeHidden {
		results = append(results, map[string]any{"name": []byte("."), "type": "directory"})
		results = append(results, map[string]any{"name": []byte(".."), "type": "directory"})
	}

	for _, entry := range entries {
		name := entry.Name()
		if !includeHidden && len(name) > 0 && name[0] == '.' {
			continue
		}

		tag := tagFromDirentType(entry.Type())
		if tag == "unknown" {
			var stat unix.Stat_t
			if err := unix.Fstatat(dirFd, name, &stat, unix.AT_SYMLINK_NOFOLLOW); err == nil {
				tag = tagFromMode(stat.Mode)
			}
		}

		record := map[string]any{"name": []byte(name), "type": tag}
		if includeAttrs {
			attrs, err := readAttrs(attrFd, name, tag)
			if err != nil {
				// The entry vanished between enumeration and the stat pass;
				// report it without attributes rather than failing the
				// whole listing.
				results = append(results, record)
				continue
			}
			record["attrs"] = attrs
		}
		results = append(results, record)
	}

	return results, nil
}

func readAttrs(dirFd int, name, tag string) (map[string]any, error) {
	var stat unix.Stat_t
	if err := unix.Fstatat(dirFd, name, &stat, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return nil, err
	}

	attrs := map[string]any{
		"type":    tag,
		"nlinks":  stat.Nlink,
		"uid":     stat.Uid,
		"gid":     stat.Gid,
		"atime":   time.Unix(stat.Atim.Sec, stat.Atim.Nsec),
		"mtime":   time.Unix(stat.Mtim.Sec, stat.Mtim.Nsec),
		"ctime":   time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec),
		"size":    stat.Size,
		"mode":    stat.Mode,
		"inode":   stat.Ino,
		"dev":     stat.Dev,
	}

	if tag == "symlink" {
		target, err := readlinkAt(dirFd, name)
		if err == nil {
			attrs["link_target"] = target
		}
	}

	return attrs, nil
}

// readlinkAt resolves a symbolic link's target relative to dirFd, growing
// the read buffer until the result fits.
func readlinkAt(dirFd int, name string) (string, error) {
	for size := readlinkInitialBufferSize; ; size *= 2 {
		buffer := make([]byte, size)
		n, err := unix.Readlinkat(dirFd, name, buffer)
		if err != nil {
			return "", err
		}
		if n < size {
			return string(buffer[:n]), nil
		}
	}
}

// tagFromDirentType maps the type bits Go's ReadDir derives from the raw
// dirent type byte onto this package's file-type tag set. For a DT_UNKNOWN
// dirent the standard library already falls back to lstat itself; a type
// outside the tag set (fs.ModeIrregular included) maps to "unknown", which
// is the signal for handleList to try its own explicit stat.
func tagFromDirentType(typ fs.FileMode) string {
	switch {
	case typ&fs.ModeIrregular != 0:
		return "unknown"
	case typ&fs.ModeDir != 0:
		return "directory"
	case typ&fs.ModeSymlink != 0:
		return "symlink"
	case typ&fs.ModeCharDevice != 0:
		return "chardevice"
	case typ&fs.ModeDevice != 0:
		return "blockdevice"
	case typ&fs.ModeNamedPipe != 0:
		return "fifo"
	case typ&fs.ModeSocket != 0:
		return "socket"
	case typ == 0:
		return "file"
	default:
		return "unknown"
	}
}

// tagFromMode maps a raw unix stat mode's file-type bits onto the same tag
// set, used for the unknown-dirent-type fallback.
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

func translateOpenError(path string, err error) *protocol.Error {
	if os.IsNotExist(err) {
		return protocol.NewErrorf(protocol.CodeFileNotFound, "file not found: %s", path)
	}
	if os.IsPermission(err) {
		return protocol.NewErrorf(protocol.CodePermissionDenied, "permission denied: %s", path)
	}
	return protocol.IOErrorWithErrno(errors.Wrap(err, "unable to open directory").Error(), errnoOf(err))
}

// errnoOf extracts the raw OS errno from err when it wraps a syscall.Errno,
// falling back to -1 when no errno is available.
func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return -1
}

func boolParam(params map[string]any, name string, def bool) bool {
	raw, ok := params[name]
	if !ok || raw == nil {
		return def
	}
	if b, ok := raw.(bool); ok {
		return b
	}
	return def
}
