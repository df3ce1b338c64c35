// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

// Info describes the circumstances of an event. Which fields are set
// depends on the event; see the Event constants.
type Info struct {
	// Helper is the helper that fired the event, if any.
	Helper Helper
	// Endpoint is the remote endpoint for connection events.
	Endpoint Endpoint
	// ConnID is the pool-assigned id of the connection, if any.
	ConnID uint64
	// Reused is true for AfterCheckout when the connection was taken
	// from the idle set rather than freshly dialed.
	Reused bool
	// Err is the error associated with the event, if any.
	Err error
}

// A HandlerGroup is a group of event handler chains which can be
// installed in a helper or pool.
//
// A HandlerGroup must be fully populated before it is installed. Once
// installed, Run may be called concurrently from many goroutines.
type HandlerGroup struct {
	handlers [][]Handler
}

// PushBack adds an event handler to the back of the event handler chain
// for a specific event type.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("connector: nil handler")
	}

	if g.handlers == nil {
		g.handlers = make([][]Handler, numEvents)
	}

	g.handlers[evt] = append(g.handlers[evt], h)
}

// Run runs the handler chain for evt in order. It is safe to call Run
// on a nil group.
func (g *HandlerGroup) Run(evt Event, info *Info) {
	if g == nil {
		return
	}
	i := int(evt)
	if i < len(g.handlers) {
		run(g.handlers[i], evt, info)
	}
}

func run(chain []Handler, evt Event, info *Info) {
	for _, h := range chain {
		h.Handle(evt, info)
	}
}

// A Handler handles the occurrence of a connector event.
//
// Handlers run synchronously on the goroutine that fired the event,
// sometimes while the pool is between state transitions. They must not
// block and must not call back into the pool.
type Handler interface {
	Handle(Event, *Info)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as event handlers. If f is a function with appropriate
// signature, then HandlerFunc(f) is a Handler that calls f.
type HandlerFunc func(Event, *Info)

// Handle calls f(evt, info).
func (f HandlerFunc) Handle(evt Event, info *Info) {
	f(evt, info)
}
