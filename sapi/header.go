package sapi

import "strings"

// Field is a single header line.
type Field struct {
	Name  string
	Value string
}

type headerEntry struct {
	name   string
	values []string
}

// Header is an ordered, case-insensitive header collection. The zero value is
// an empty collection. Mutators never touch the receiver; they return a copy.
type Header struct {
	entries []headerEntry
}

// NewHeader builds a Header from fields, merging repeated names in order.
func NewHeader(fields ...Field) Header {
	var h Header
	for _, f := range fields {
		h = h.WithAdded(f.Name, f.Value)
	}
	return h
}

func (h Header) index(name string) int {
	for i, e := range h.entries {
		if strings.EqualFold(e.name, name) {
			return i
		}
	}
	return -1
}

func (h Header) clone() Header {
	if h.entries == nil {
		return Header{}
	}
	entries := make([]headerEntry, len(h.entries))
	for i, e := range h.entries {
		entries[i] = headerEntry{name: e.name, values: append([]string(nil), e.values...)}
	}
	return Header{entries: entries}
}

// Has reports whether name is present.
func (h Header) Has(name string) bool {
	return h.index(name) >= 0
}

// Get returns the first value for name, or "".
func (h Header) Get(name string) string {
	if i := h.index(name); i >= 0 && len(h.entries[i].values) > 0 {
		return h.entries[i].values[0]
	}
	return ""
}

// Values returns a copy of all values for name.
func (h Header) Values(name string) []string {
	if i := h.index(name); i >= 0 {
		return append([]string(nil), h.entries[i].values...)
	}
	return nil
}

// Line returns all values for name joined with ", ".
func (h Header) Line(name string) string {
	if i := h.index(name); i >= 0 {
		return strings.Join(h.entries[i].values, ", ")
	}
	return ""
}

// Names returns header names in insertion order, spelled as first seen.
func (h Header) Names() []string {
	names := make([]string, 0, len(h.entries))
	for _, e := range h.entries {
		names = append(names, e.name)
	}
	return names
}

// Fields flattens the collection into one Field per value.
func (h Header) Fields() []Field {
	var fields []Field
	for _, e := range h.entries {
		for _, v := range e.values {
			fields = append(fields, Field{Name: e.name, Value: v})
		}
	}
	return fields
}

func (h Header) Len() int {
	return len(h.entries)
}

// With replaces all values of name. With no values it removes name, since a
// name without values emits no line.
func (h Header) With(name string, values ...string) Header {
	if len(values) == 0 {
		return h.Without(name)
	}
	out := h.clone()
	vals := append([]string(nil), values...)
	if i := out.index(name); i >= 0 {
		out.entries[i].values = vals
		return out
	}
	out.entries = append(out.entries, headerEntry{name: name, values: vals})
	return out
}

// WithAdded appends value to name, keeping existing values.
func (h Header) WithAdded(name, value string) Header {
	out := h.clone()
	if i := out.index(name); i >= 0 {
		out.entries[i].values = append(out.entries[i].values, value)
		return out
	}
	out.entries = append(out.entries, headerEntry{name: name, values: []string{value}})
	return out
}

// Without removes name.
func (h Header) Without(name string) Header {
	i := h.index(name)
	if i < 0 {
		return h
	}
	out := h.clone()
	out.entries = append(out.entries[:i], out.entries[i+1:]...)
	return out
}
