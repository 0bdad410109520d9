package k8s

import (
	"maps"
	"slices"
	"strings"
)

// LabelSelector selects objects whose labels equal every entry.
type LabelSelector map[string]string

// QueryString formats the selector as "k1=v1,k2=v2", sorted by key.
func (ls LabelSelector) QueryString() string {
	keys := slices.Sorted(maps.Keys(ls))

	terms := make([]string, len(keys))
	for i, k := range keys {
		terms[i] = k + "=" + ls[k]
	}
	return strings.Join(terms, ",")
}

// Matches tells labels satisfy the selector.
func (ls LabelSelector) Matches(labels map[string]string) bool {
	for k, v := range ls {
		if actual, ok := labels[k]; !ok || actual != v {
			return false
		}
	}
	return true
}
