package util

import "encoding/json"

// SafeStringify marshals v, falling back to "{}" on any error rather than
// propagating it. The fallback replaces the whole of v, so one
// unserializable event inside a batch blanks the entire batch — a
// deliberate trade-off, not a defect, carried over unchanged.
func SafeStringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// SafeMarshal is the []byte counterpart of SafeStringify, used where the
// caller needs raw bytes (transport payloads) instead of a string.
func SafeMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
