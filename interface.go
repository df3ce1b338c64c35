// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

import (
	"errors"
	"io"

	"github.com/gogama/connector/header"
)

// Call is the transport-neutral view of one HTTP request/response
// exchange. It groups the read accessors shared by inbound (ServerCall)
// and outbound (ClientCall) calls.
//
// A Call is single-owner: it must not be used from more than one
// goroutine at a time. Once the exchange completes the Call is closed,
// and its header and body accessors fail with ErrCallClosed.
type Call interface {
	// Confidential reports whether the exchange is carried over an
	// encrypted channel. It is fixed when the Call is created.
	Confidential() bool
	// RequestAddress returns the IP address of the peer that sent the
	// request.
	RequestAddress() string
	// ResponseAddress returns the IP address of the peer that sends the
	// response.
	ResponseAddress() string
	// RequestMethod returns the request method token.
	RequestMethod() string
	// RequestURI returns the absolute target URI, composed as
	// scheme://host/path from the confidentiality flag, the request's
	// Host header and the request-line path. No normalization is done.
	RequestURI() string
	// RequestHeaders returns the request header list, copying it from
	// the transport-native request on the first call only. Later calls
	// return the same list, including any changes the caller made.
	RequestHeaders() (*header.List, error)
	// ResponseStatus returns the response status code and reason phrase.
	ResponseStatus() (code int, reason string)
	// ResponseHeaders returns the response header list, copying it from
	// the transport-native response on the first call only.
	ResponseHeaders() (*header.List, error)
}

// ServerCall is an inbound Call, created by a server transport adapter
// for one received request and handed to a Dispatcher.
type ServerCall interface {
	Call
	// SetResponseStatus sets the status code and reason phrase. Any
	// integer is accepted.
	SetResponseStatus(code int, reason string)
	// SendResponseHeaders writes the status and the local response
	// header list into the transport-native response. Headers already
	// present on the native response are removed first. Calling it again
	// after the headers went out returns a *DesyncError.
	SendResponseHeaders() error
	// RequestBody returns a stream over the request body.
	RequestBody() (io.Reader, error)
	// ResponseBody returns a stream for the response body. Writing to
	// it sends the response headers first if they are still pending.
	ResponseBody() (io.Writer, error)
	// RequestChannel returns a channel-style accessor over the request
	// body, or ErrUnsupported.
	RequestChannel() (ReadChannel, error)
	// ResponseChannel returns a channel-style accessor for the response
	// body, or ErrUnsupported.
	ResponseChannel() (WriteChannel, error)
}

// ClientCall is an outbound Call bound to one pooled connection.
//
// The caller drives the exchange in order: SetRequest, adjust the
// request headers, SendRequestHeaders, write RequestBody, then
// ReceiveResponse and read ResponseBody. The Call is returned with the
// owning helper's Release method.
type ClientCall interface {
	Call
	// SetRequest sets the request method and path. It fails once the
	// request headers were sent.
	SetRequest(method, path string) error
	// SendRequestHeaders writes the request line and the local request
	// header list to the connection. Headers already present on the
	// native request are removed first.
	SendRequestHeaders() error
	// RequestBody returns a stream for the request body. Closing it, if
	// it implements io.Closer, terminates a chunked body.
	RequestBody() (io.Writer, error)
	// ReceiveResponse finishes the request body and reads the response
	// status line and headers.
	ReceiveResponse() error
	// ResponseBody returns a stream over the response body.
	ResponseBody() (io.Reader, error)
	// Endpoint returns the remote endpoint of the borrowed connection.
	Endpoint() Endpoint
}

// ReadChannel is the channel-style request body accessor. WriteTo lets
// the body be moved to its destination without an intermediate buffer
// where the transport allows it.
type ReadChannel interface {
	io.Reader
	io.WriterTo
}

// WriteChannel is the channel-style response body accessor. ReadFrom
// lets the body be filled from its source without an intermediate
// buffer where the transport allows it.
type WriteChannel interface {
	io.Writer
	io.ReaderFrom
}

// A Dispatcher produces the response to an inbound call. It is the
// boundary between a server helper and the request routing layer.
//
// Dispatch owns the call until it returns. Headers left unsent are sent
// by the helper afterwards.
type Dispatcher interface {
	Dispatch(ServerCall)
}

// The DispatcherFunc type is an adapter to allow the use of ordinary
// functions as dispatchers.
type DispatcherFunc func(ServerCall)

// Dispatch calls f(c).
func (f DispatcherFunc) Dispatch(c ServerCall) {
	f(c)
}

// Helper is the lifecycle owner of one transport engine instance.
//
// Start and Stop are idempotent: starting a started helper, or stopping
// a stopped one, does nothing and returns nil. Genuine bind or close
// failures are returned and leave the helper in its previous state.
type Helper interface {
	// Protocols returns the protocols the helper serves.
	Protocols() []Protocol
	Start() error
	Stop() error
	Started() bool
}

// RequestReader returns the best available reader over the request
// body of c: the channel accessor if the adapter supports it, and the
// stream accessor otherwise.
func RequestReader(c ServerCall) (io.Reader, error) {
	if ch, err := c.RequestChannel(); err == nil {
		return ch, nil
	} else if !errors.Is(err, ErrUnsupported) {
		return nil, err
	}
	return c.RequestBody()
}

// ResponseWriter returns the best available writer for the response
// body of c: the channel accessor if the adapter supports it, and the
// stream accessor otherwise.
func ResponseWriter(c ServerCall) (io.Writer, error) {
	if ch, err := c.ResponseChannel(); err == nil {
		return ch, nil
	} else if !errors.Is(err, ErrUnsupported) {
		return nil, err
	}
	return c.ResponseBody()
}
