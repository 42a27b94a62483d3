// Package pathval decodes the wire protocol's path value (UTF-8 string or
// raw byte sequence) and performs the one expansion the protocol allows:
// leading "~" or "~/" against the HOME environment variable.
package pathval

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Decode extracts a path from a decoded params value, accepting either a
// Go string or a []byte (msgpack bin). Byte sequences bypass Unicode
// validation entirely, per the wire protocol; strings are used as-is since
// Go strings are just byte sequences with no encoding enforced at this
// layer either.
func Decode(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return Expand(v), nil
	case []byte:
		return Expand(string(v)), nil
	case nil:
		return "", errors.New("path value is missing")
	default:
		return "", errors.Errorf("path value has unsupported type %T", value)
	}
}

// Expand performs tilde expansion against HOME. Only a bare "~" or a "~/"
// prefix is recognized; no other expansion (including "~user/") is
// performed, per the wire protocol.
func Expand(path string) string {
	if path == "~" {
		if home := os.Getenv("HOME"); home != "" {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home := os.Getenv("HOME"); home != "" {
			return home + path[1:]
		}
	}
	return path
}
