package fsops

import (
	"os"
	"syscall"

	"github.com/pkg/errors"

	"github.com/hostagent/hostagent/internal/protocol"
)

// translateErrno classifies a filesystem error into the wire protocol's
// fixed error-code space.
func translateErrno(path string, err error) *protocol.Error {
	if os.IsNotExist(err) {
		return protocol.NewErrorf(protocol.CodeFileNotFound, "file not found: %s", path)
	}
	if os.IsPermission(err) {
		return protocol.NewErrorf(protocol.CodePermissionDenied, "permission denied: %s", path)
	}
	return protocol.IOErrorWithErrno(err.Error(), errnoOf(err))
}

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return -1
}
