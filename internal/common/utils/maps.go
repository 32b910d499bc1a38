// Package utils provides small helpers shared across the trigger engine:
// dot-path lookups into runtime context maps, canonical JSON encoding for
// cache keys, and ID generation.
package utils

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// LookupPath resolves a dot-separated path into a nested map, e.g.
// "guest.preferences.room_type". The second return value reports whether
// the full path resolved.
func LookupPath(data map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	var current interface{} = data
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// CanonicalJSON encodes a map with sorted keys so equal maps always
// produce identical bytes. Used for content-hash cache keys.
func CanonicalJSON(data map[string]interface{}) []byte {
	if data == nil {
		return []byte("{}")
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(k)
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(canonicalValue(data[k]))
	}
	b.WriteByte('}')
	return []byte(b.String())
}

func canonicalValue(v interface{}) []byte {
	if nested, ok := v.(map[string]interface{}); ok {
		return CanonicalJSON(nested)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		// Unencodable values (channels, funcs) still need a stable key.
		fallback, _ := json.Marshal(fmt.Sprintf("%v", v))
		return fallback
	}
	return encoded
}
