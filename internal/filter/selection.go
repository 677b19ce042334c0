// Package filter drives the toolbar filter dropdowns of the document grid.
package filter

import "strings"

// Selection is the ordered set of checked values in one filter category.
// It is a value: every operation returns a new Selection.
type Selection struct {
	values []string
}

// NewSelection returns a selection holding values, duplicates dropped.
func NewSelection(values ...string) Selection {
	var s Selection
	for _, v := range values {
		if !s.Has(v) {
			s.values = append(s.values, v)
		}
	}
	return s
}

// Has reports whether v is checked.
func (s Selection) Has(v string) bool {
	for _, have := range s.values {
		if have == v {
			return true
		}
	}
	return false
}

// Toggle flips v the way clicking its checkbox does.
func (s Selection) Toggle(v string) Selection {
	out := make([]string, 0, len(s.values)+1)
	found := false
	for _, have := range s.values {
		if have == v {
			found = true
			continue
		}
		out = append(out, have)
	}
	if !found {
		out = append(out, v)
	}
	return Selection{values: out}
}

// Values returns the checked values in check order.
func (s Selection) Values() []string {
	return append([]string(nil), s.values...)
}

func (s Selection) Len() int { return len(s.values) }

func (s Selection) Empty() bool { return len(s.values) == 0 }

// Equal compares membership, ignoring order.
func (s Selection) Equal(o Selection) bool {
	if len(s.values) != len(o.values) {
		return false
	}
	for _, v := range s.values {
		if !o.Has(v) {
			return false
		}
	}
	return true
}

// Diff lists the checkbox clicks that turn s into target within one open
// dropdown: values to uncheck first (in s order), then values to check (in
// target order).
func (s Selection) Diff(target Selection) []string {
	var clicks []string
	for _, v := range s.values {
		if !target.Has(v) {
			clicks = append(clicks, v)
		}
	}
	for _, v := range target.values {
		if !s.Has(v) {
			clicks = append(clicks, v)
		}
	}
	return clicks
}

func (s Selection) String() string {
	return "{" + strings.Join(s.values, ", ") + "}"
}
