// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package header

import "fmt"

// A Source enumerates the header fields of a transport-native request or
// response by index.
//
// At may fail if the native structure holds data it cannot represent as
// a Field. Implementations must not be modified while being enumerated.
type Source interface {
	Len() int
	At(i int) (Field, error)
}

// Fields is a Source over a plain slice of fields.
type Fields []Field

// Len returns the number of fields.
func (f Fields) Len() int {
	return len(f)
}

// At returns the field at index i.
func (f Fields) At(i int) (Field, error) {
	if i < 0 || i >= len(f) {
		return Field{}, fmt.Errorf("connector/header: index %d out of range [0,%d)", i, len(f))
	}
	return f[i], nil
}

// A State is the materialization state of a Lazy list.
type State int

const (
	// Unmaterialized means the native fields have not been copied yet.
	Unmaterialized State = iota
	// Materialized means the native fields were copied, successfully or
	// not, and the list is now authoritative.
	Materialized
)

var stateNames = []string{
	"Unmaterialized",
	"Materialized",
}

// String returns the name of the state.
func (s State) String() string {
	return stateNames[int(s)]
}

// A Lazy is a header list which is populated from a Source on first
// access and never again. Its zero value is Unmaterialized.
//
// Once materialized, the list belongs to the caller: later changes to
// the Source are not observed, and caller changes to the list are never
// overwritten.
type Lazy struct {
	state State
	list  List
}

// State returns the materialization state.
func (z *Lazy) State() State {
	return z.state
}

// Materialize copies every field of src into the list if that has not
// happened yet, and returns the list.
//
// If src fails part way, the list is left empty but still counts as
// Materialized, and the error is passed to onErr if it is non-nil. A
// request with no headers is more useful than no request at all.
func (z *Lazy) Materialize(src Source, onErr func(error)) *List {
	if z.state == Materialized {
		return &z.list
	}
	z.state = Materialized
	if src == nil {
		return &z.list
	}
	n := src.Len()
	for i := 0; i < n; i++ {
		f, err := src.At(i)
		if err != nil {
			z.list.Dispose()
			if onErr != nil {
				onErr(err)
			}
			break
		}
		z.list.Add(f.Name, f.Value)
	}
	return &z.list
}

// List returns the list without materializing it. The result is empty
// while the state is Unmaterialized.
func (z *Lazy) List() *List {
	return &z.list
}
