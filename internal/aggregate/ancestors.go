package aggregate

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hostagent/hostagent/internal/pathval"
	"github.com/hostagent/hostagent/internal/protocol"
)

const defaultMaxDepth = 10

// handleAncestorsScan implements ancestors.scan: walk upward from
// directory, resolving each unresolved marker to the first ancestor
// directory that contains it.
func handleAncestorsScan(ctx context.Context, params map[string]any) (any, *protocol.Error) {
	directory, err := pathval.Decode(params["directory"])
	if err != nil {
		return nil, protocol.NewErrorf(protocol.CodeInvalidParams, "invalid \"directory\": %v", err)
	}

	rawMarkers, _ := params["markers"].([]any)
	markers := make([]string, 0, len(rawMarkers))
	for _, m := range rawMarkers {
		s, ok := m.(string)
		if !ok {
			return nil, protocol.NewError(protocol.CodeInvalidParams, "each entry in \"markers\" must be a string")
		}
		markers = append(markers, s)
	}

	maxDepth := defaultMaxDepth
	if raw, ok := params["max_depth"]; ok && raw != nil {
		if n, ok := toInt(raw); ok {
			maxDepth = n
		}
	}

	result := make(map[string]any, len(markers))
	unresolved := make(map[string]bool, len(markers))
	for _, m := range markers {
		unresolved[m] = true
		result[m] = nil
	}

	current := filepath.Clean(directory)
	for depth := 0; depth <= maxDepth && len(unresolved) > 0; depth++ {
		for marker := range unresolved {
			if _, err := os.Lstat(filepath.Join(current, marker)); err == nil {
				result[marker] = current
				delete(unresolved, marker)
			}
		}
		if len(unresolved) == 0 {
			break
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return result, nil
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
