package ptysup

// intParam extracts an integer parameter that may have arrived as any
// msgpack-decoded numeric type, falling back to def if absent. Duplicated
// from procsup rather than shared, since the two tables' handlers are
// otherwise independent and neither imports the other.
func intParam(params map[string]any, name string, def int) int {
	raw, ok := params[name]
	if !ok || raw == nil {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
