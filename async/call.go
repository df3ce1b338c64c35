// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package async

import (
	"fmt"
	"io"

	"github.com/gogama/connector"
	"github.com/gogama/connector/header"
	"github.com/gogama/connector/internal/wire"
)

// A Call adapts one engine exchange to connector.ServerCall. Headers
// are materialized from the engine's header sets on first access, and
// the channel accessors are unsupported.
//
// A Call is not safe for concurrent use.
type Call struct {
	req          Request
	resp         Response
	confidential bool
	address      string

	reqHeaders  header.Lazy
	respHeaders header.Lazy

	sent   bool
	closed bool
}

// NewCall wraps an exchange. The confidential flag reports whether the
// engine serves HTTPS, and address is the server address the exchange
// arrived on.
func NewCall(req Request, resp Response, confidential bool, address string) *Call {
	return &Call{
		req:          req,
		resp:         resp,
		confidential: confidential,
		address:      address,
	}
}

func (c *Call) Confidential() bool {
	return c.confidential
}

func (c *Call) RequestAddress() string {
	return c.req.RemoteAddress()
}

func (c *Call) ResponseAddress() string {
	return c.address
}

func (c *Call) RequestMethod() string {
	return c.req.Method()
}

func (c *Call) RequestURI() string {
	host := c.req.Header("Host")
	if c.reqHeaders.State() == header.Materialized {
		host, _ = c.reqHeaders.List().First("Host")
	}
	s := connector.HTTP.Scheme()
	if c.confidential {
		s = connector.HTTPS.Scheme()
	}
	return s + "://" + host + c.req.URI()
}

func (c *Call) RequestHeaders() (*header.List, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return c.reqHeaders.Materialize(headerSource{c.req.Headers()}, func(err error) {
		log.Errorf("Dropping request headers of %s %s: %v", c.req.Method(), c.req.URI(), err)
	}), nil
}

func (c *Call) ResponseStatus() (int, string) {
	return c.resp.Status()
}

func (c *Call) ResponseHeaders() (*header.List, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return c.responseHeaders(), nil
}

func (c *Call) responseHeaders() *header.List {
	return c.respHeaders.Materialize(headerSource{c.resp.Headers()}, func(err error) {
		log.Errorf("Dropping response headers of %s %s: %v", c.req.Method(), c.req.URI(), err)
	})
}

func (c *Call) SetResponseStatus(code int, reason string) {
	c.resp.SetStatus(code, reason)
}

// SendResponseHeaders disposes the engine's response headers and adds
// the local list in their place. The engine writes them with the
// status line.
func (c *Call) SendResponseHeaders() error {
	if c.closed {
		return connector.ErrCallClosed
	}
	if c.sent {
		return &connector.DesyncError{Op: "SendResponseHeaders", Reason: "response headers already sent"}
	}
	local := c.responseHeaders()
	if err := wire.ValidFields(local.Fields()); err != nil {
		return err
	}
	c.resp.Headers().Dispose()
	for _, f := range local.Fields() {
		c.resp.AddHeader(f.Name, f.Value)
	}
	c.sent = true
	return nil
}

func (c *Call) RequestBody() (io.Reader, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return requestBody{c}, nil
}

func (c *Call) ResponseBody() (io.Writer, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return responseBody{c}, nil
}

func (c *Call) RequestChannel() (connector.ReadChannel, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return nil, connector.ErrUnsupported
}

func (c *Call) ResponseChannel() (connector.WriteChannel, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return nil, connector.ErrUnsupported
}

// Close sends the response headers if they are still pending and
// closes the call. Accessors return connector.ErrCallClosed
// afterwards. Closing a closed call does nothing.
func (c *Call) Close() error {
	if c.closed {
		return nil
	}
	var err error
	if !c.sent {
		err = c.SendResponseHeaders()
	}
	c.closed = true
	return err
}

type headerSource struct {
	hs HeaderSet
}

func (s headerSource) Len() int {
	return s.hs.Len()
}

func (s headerSource) At(i int) (header.Field, error) {
	name := s.hs.Name(i)
	if !header.ValidName(name) {
		return header.Field{}, fmt.Errorf("connector/async: invalid header name %q", name)
	}
	return header.Field{Name: name, Value: s.hs.Value(i)}, nil
}

type requestBody struct {
	c *Call
}

func (b requestBody) Read(p []byte) (int, error) {
	if b.c.closed {
		return 0, connector.ErrCallClosed
	}
	return b.c.req.Body().Read(p)
}

type responseBody struct {
	c *Call
}

func (b responseBody) Write(p []byte) (int, error) {
	if b.c.closed {
		return 0, connector.ErrCallClosed
	}
	if !b.c.sent {
		if err := b.c.SendResponseHeaders(); err != nil {
			return 0, err
		}
	}
	return b.c.resp.Body().Write(p)
}
