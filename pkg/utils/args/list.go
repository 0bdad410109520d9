package args

import (
	"slices"
	"strings"
)

// List is a repeatable flag of comma separated words.
//
//	--protocols left,right --protocols up
//
// gives [left right up]. Empty words are dropped and duplicates are kept
// once, in the order they first appear.
type List struct {
	items []string
}

func NewList(items ...string) *List {
	l := &List{}
	for _, i := range items {
		l.add(i)
	}
	return l
}

func (l *List) add(item string) {
	item = strings.TrimSpace(item)
	if item == "" || slices.Contains(l.items, item) {
		return
	}
	l.items = append(l.items, item)
}

func (l *List) String() string {
	if l == nil {
		return ""
	}
	return strings.Join(l.items, ",")
}

func (l *List) Set(s string) error {
	for _, item := range strings.Split(s, ",") {
		l.add(item)
	}
	return nil
}

// Values returns a copy of the words. It is nil when nothing is set.
func (l *List) Values() []string {
	if l == nil || len(l.items) == 0 {
		return nil
	}
	return slices.Clone(l.items)
}
