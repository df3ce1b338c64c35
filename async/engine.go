// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package async

import "io"

// A HeaderSet is an engine-native header collection enumerated by
// index.
type HeaderSet interface {
	Len() int
	Name(i int) string
	Value(i int) string
	// Dispose removes every header from the set.
	Dispose()
}

// A Request is the engine-native view of an inbound request.
type Request interface {
	Method() string
	// URI returns the request target: path and query.
	URI() string
	RemoteAddress() string
	// Header returns the first value of the named header, matched
	// case-insensitively, or "" if there is none.
	Header(name string) string
	Headers() HeaderSet
	Body() io.Reader
}

// A Response is the engine-native response under construction. The
// engine writes the head no earlier than the first body write, or when
// the handler returns.
type Response interface {
	Status() (code int, reason string)
	SetStatus(code int, reason string)
	Headers() HeaderSet
	AddHeader(name, value string)
	Body() io.Writer
}

// A Handler serves exchanges delivered by an Engine. The engine calls
// Serve on goroutines it owns.
type Handler interface {
	Serve(Request, Response)
}

// The HandlerFunc type is an adapter to allow the use of ordinary
// functions as engine handlers.
type HandlerFunc func(Request, Response)

// Serve calls f(req, resp).
func (f HandlerFunc) Serve(req Request, resp Response) {
	f(req, resp)
}

// An Engine is an externally hosted HTTP server.
type Engine interface {
	// Serve starts delivering exchanges to h. It returns once the
	// engine is accepting, or with the error that prevented it.
	Serve(h Handler) error
	// Shutdown stops the engine. Exchanges in progress may still
	// complete.
	Shutdown() error
}
