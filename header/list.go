// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package header

import (
	"golang.org/x/net/http/httpguts"
)

// A Field is a single header name/value pair.
type Field struct {
	Name  string
	Value string
}

// A List is an ordered, mutable collection of header fields. Its zero
// value is an empty list ready to use.
//
// Names are stored exactly as added but compared case-insensitively
// (ASCII only). Repeated names are allowed and keep their relative
// order. A List is not safe for concurrent use.
//
// List deliberately accepts any non-empty name and value. Rejecting
// malformed fields is the job of the layer producing them; see
// ValidName and ValidValue.
type List struct {
	fields []Field
}

// equalName compares header names, folding ASCII letters only. Unicode
// folds such as the Kelvin sign and 'k' must not match, since header
// names are ASCII tokens on the wire.
func equalName(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		x, y := a[i], b[i]
		if x == y {
			continue
		}
		if 'A' <= x && x <= 'Z' {
			x += 'a' - 'A'
		}
		if 'A' <= y && y <= 'Z' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}

// Add appends the field name: value to the end of the list.
func (l *List) Add(name, value string) {
	l.fields = append(l.fields, Field{Name: name, Value: value})
}

// First returns the value of the first field whose name matches name
// case-insensitively. The boolean result is false if there is no such
// field.
func (l *List) First(name string) (string, bool) {
	for i := range l.fields {
		if equalName(l.fields[i].Name, name) {
			return l.fields[i].Value, true
		}
	}
	return "", false
}

// Get is like First but returns the empty string if the field is
// absent.
func (l *List) Get(name string) string {
	v, _ := l.First(name)
	return v
}

// All returns the values of every field whose name matches name
// case-insensitively, in insertion order. The result is nil if no field
// matches.
func (l *List) All(name string) []string {
	var values []string
	for i := range l.fields {
		if equalName(l.fields[i].Name, name) {
			values = append(values, l.fields[i].Value)
		}
	}
	return values
}

// Set replaces every field matching name with a single field name:
// value. The replacement takes the position of the first match, or is
// appended if there was none.
func (l *List) Set(name, value string) {
	j := -1
	n := 0
	for i := range l.fields {
		if equalName(l.fields[i].Name, name) {
			if j >= 0 {
				continue
			}
			j = n
		}
		l.fields[n] = l.fields[i]
		n++
	}
	l.fields = l.fields[:n]
	if j < 0 {
		l.Add(name, value)
		return
	}
	l.fields[j] = Field{Name: name, Value: value}
}

// Del removes every field matching name.
func (l *List) Del(name string) {
	n := 0
	for i := range l.fields {
		if !equalName(l.fields[i].Name, name) {
			l.fields[n] = l.fields[i]
			n++
		}
	}
	for i := n; i < len(l.fields); i++ {
		l.fields[i] = Field{}
	}
	l.fields = l.fields[:n]
}

// Dispose removes all fields from the list.
func (l *List) Dispose() {
	for i := range l.fields {
		l.fields[i] = Field{}
	}
	l.fields = l.fields[:0]
}

// Len returns the number of fields in the list.
func (l *List) Len() int {
	return len(l.fields)
}

// At returns the field at index i. It panics if i is out of range.
func (l *List) At(i int) Field {
	return l.fields[i]
}

// Fields returns a copy of the fields in insertion order.
func (l *List) Fields() []Field {
	if len(l.fields) == 0 {
		return nil
	}
	f := make([]Field, len(l.fields))
	copy(f, l.fields)
	return f
}

// Clone returns a deep copy of the list.
func (l *List) Clone() *List {
	return &List{fields: l.Fields()}
}

// HasToken reports whether any field named name contains token in its
// comma-separated value list, ignoring case. It is typically used to
// look for "close" in the Connection header.
func (l *List) HasToken(name, token string) bool {
	return httpguts.HeaderValuesContainsToken(l.All(name), token)
}

// ValidName reports whether name is a valid header field name.
func ValidName(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// ValidValue reports whether value is a valid header field value.
func ValidValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}
