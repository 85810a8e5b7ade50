package service

import "strings"

// copyFilter returns a shallow copy of a search filter so scoping never
// mutates the caller's map. A nil filter yields an empty map.
func copyFilter(filter map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(filter)+2)
	for k, v := range filter {
		out[k] = v
	}
	return out
}

// filterField returns the field part of a filter key such as "admins__in",
// mapping the public "id" to "_id"
func filterField(key string) string {
	if i := strings.LastIndex(key, "__"); i >= 0 {
		key = key[:i]
	}
	if key == "id" {
		return "_id"
	}
	return key
}
