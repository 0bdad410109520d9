package database

import (
	"slices"
	"sort"
)

// Options filters files by their attributes.
//
// A file matches when, for every key, its attribute is one of the values.
type Options map[string][]string

// Match tells whether attributes satisfy o.
func (o Options) Match(attributes map[string]string) bool {
	for key, values := range o {
		if len(values) == 0 {
			continue
		}
		v, ok := attributes[key]
		if !ok || !slices.Contains(values, v) {
			return false
		}
	}
	return true
}

// Keys in sorted order.
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deeply copies o.
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = slices.Clone(v)
	}
	return c
}

// Merge returns a new Options: for each key, values of base followed by
// values of overrides. Neither argument is modified.
func Merge(base, overrides Options) Options {
	if base == nil && overrides == nil {
		return nil
	}
	merged := base.Clone()
	if merged == nil {
		merged = Options{}
	}
	for k, v := range overrides {
		merged[k] = append(merged[k], v...)
	}
	return merged
}
