package strutil

import (
	"slices"
	"strings"
)

// ConvertKVStringsToMap is from https://github.com/moby/moby/blob/v20.10.0-rc2/runconfig/opts/parse.go
//
// ConvertKVStringsToMap converts ["key=value"] to {"key":"value"}. Keys are trimmed,
// a key without "=" maps to an empty value.
func ConvertKVStringsToMap(values []string) map[string]string {
	result := make(map[string]string, len(values))

	const splitLimit = 2
	for _, value := range values {
		kv := strings.SplitN(value, "=", splitLimit)
		key := strings.TrimSpace(kv[0])
		if len(kv) == 1 {
			result[key] = ""
		} else {
			result[key] = kv[1]
		}
	}

	return result
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	return keys
}

// DedupeStrSlice drops empty strings and duplicates, keeping the first occurrence order.
func DedupeStrSlice(in []string) []string {
	m := make(map[string]struct{})

	var res []string

	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := m[s]; !ok {
			res = append(res, s)
			m[s] = struct{}{}
		}
	}

	return res
}
