// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

// An Event identifies the event type when installing or running a
// Handler. Install event handlers in a helper or pool to observe
// connector lifecycle and connection traffic.
type Event int

const (
	// BeforeStart identifies the event that occurs when a stopped helper
	// is about to start.
	//
	// When a helper fires BeforeStart, the info's Helper field is set
	// and all other fields are zero.
	BeforeStart Event = iota
	// AfterStart identifies the event that occurs after a helper start
	// attempt concludes.
	//
	// The info's Err field is set if the start failed, in which case
	// the helper remains stopped.
	AfterStart
	// BeforeStop identifies the event that occurs when a started helper
	// is about to stop.
	BeforeStop
	// AfterStop identifies the event that occurs after a helper stop
	// attempt concludes.
	AfterStop
	// AfterDial identifies the event that occurs after the pool dials a
	// new connection, successfully or not.
	//
	// On success the info's ConnID is set to the new connection's id.
	// On failure the Err field is set and ConnID is zero.
	AfterDial
	// AfterCheckout identifies the event that occurs after a connection
	// is handed to a caller. The info's Reused field reports whether the
	// connection came from the idle set.
	AfterCheckout
	// AfterRelease identifies the event that occurs after a caller
	// returns a healthy connection to the idle set.
	AfterRelease
	// AfterDiscard identifies the event that occurs after a caller
	// discards a connection. The info's Err field holds the cause, if
	// the caller gave one.
	AfterDiscard
	// AfterEvict identifies the event that occurs after the pool closes
	// a connection on its own initiative: an idle connection which
	// expired or went stale, or any connection when the pool itself is
	// closed. In the latter case the info's Err field is
	// ErrPoolClosed.
	AfterEvict
	// eventSentinel provides the total number of events typed as an
	// Event.
	eventSentinel

	// numEvents provides the total number of events types as an int.
	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"BeforeStart",
	"AfterStart",
	"BeforeStop",
	"AfterStop",
	"AfterDial",
	"AfterCheckout",
	"AfterRelease",
	"AfterDiscard",
	"AfterEvict",
}

// Events returns a slice containing all events which can be fired by a
// helper or pool. Helper events come first in lifecycle order, followed
// by connection events.
func Events() []Event {
	return []Event{
		BeforeStart,
		AfterStart,
		BeforeStop,
		AfterStop,
		AfterDial,
		AfterCheckout,
		AfterRelease,
		AfterDiscard,
		AfterEvict,
	}
}

// Name returns the name of the event.
func (evt Event) Name() string {
	return eventNames[int(evt)]
}

// String returns the name of the event.
func (evt Event) String() string {
	return evt.Name()
}
