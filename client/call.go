// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"io"
	"net"
	"net/http/httputil"
	"net/textproto"

	"github.com/gogama/connector"
	"github.com/gogama/connector/header"
	"github.com/gogama/connector/internal/wire"
	"github.com/gogama/connector/pool"
)

// phase tracks how far an exchange has progressed.
type phase int

const (
	phaseNew phase = iota
	phaseRequestBody
	phaseResponse
	phaseClosed
)

// A Call is one outbound HTTP/1.1 exchange over a pooled connection.
// It implements connector.ClientCall.
//
// The native request starts out with a Host header for the endpoint.
// The request header list is copied from the native request on first
// access, and written back to it, replacing whatever it held, when the
// request headers are sent.
//
// A Call is not safe for concurrent use.
type Call struct {
	h    *Helper
	pool *pool.Pool
	conn *pool.Conn

	method string
	path   string
	native header.List

	reqHeaders  header.Lazy
	respHeaders header.Lazy

	phase       phase
	reqFraming  wire.Framing
	reqWriter   io.Writer
	reqChunked  io.WriteCloser
	reqFinished bool
	head        *responseHead
	respFraming wire.Framing
	respBody    *responseBody
	err         error
}

func newCall(h *Helper, p *pool.Pool, conn *pool.Conn) *Call {
	c := &Call{
		h:      h,
		pool:   p,
		conn:   conn,
		method: "GET",
		path:   "/",
	}
	c.native.Add("Host", conn.Endpoint().HostHeader())
	return c
}

// Confidential reports whether the connection is encrypted.
func (c *Call) Confidential() bool {
	return c.conn.Endpoint().Confidential
}

// RequestAddress returns the local IP address of the connection.
func (c *Call) RequestAddress() string {
	return addrIP(c.conn.LocalAddr())
}

// ResponseAddress returns the IP address of the remote server.
func (c *Call) ResponseAddress() string {
	return addrIP(c.conn.RemoteAddr())
}

func addrIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	s := addr.String()
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

// RequestMethod returns the request method, GET unless changed with
// SetRequest.
func (c *Call) RequestMethod() string {
	return c.method
}

// RequestURI composes the target URI from the endpoint scheme, the
// request's Host header and the request path.
func (c *Call) RequestURI() string {
	h := &c.native
	if c.reqHeaders.State() == header.Materialized {
		h = c.reqHeaders.List()
	}
	host, _ := h.First("Host")
	return c.conn.Endpoint().Scheme() + "://" + host + c.path
}

// RequestHeaders returns the request header list, materializing it
// from the native request on first use.
func (c *Call) RequestHeaders() (*header.List, error) {
	if c.phase == phaseClosed {
		return nil, connector.ErrCallClosed
	}
	return c.requestHeaders(), nil
}

func (c *Call) requestHeaders() *header.List {
	return c.reqHeaders.Materialize(header.Fields(c.native.Fields()), materializeFailed("request"))
}

func materializeFailed(side string) func(error) {
	return func(err error) {
		log.Errorf("Dropping %s headers: %v", side, err)
	}
}

// ResponseStatus returns the status code and reason phrase of the
// response, or zero values before ReceiveResponse succeeds.
func (c *Call) ResponseStatus() (int, string) {
	if c.head == nil {
		return 0, ""
	}
	return c.head.status, c.head.reason
}

// ResponseHeaders returns the response header list, materializing it
// from the received header lines on first use. It fails until the
// response has been received.
func (c *Call) ResponseHeaders() (*header.List, error) {
	if err := c.responseReady("ResponseHeaders"); err != nil {
		return nil, err
	}
	return c.respHeaders.Materialize(c.head.lines, materializeFailed("response")), nil
}

// SetRequest sets the request method and path.
func (c *Call) SetRequest(method, path string) error {
	switch c.phase {
	case phaseClosed:
		return connector.ErrCallClosed
	case phaseNew:
		c.method, c.path = method, path
		return nil
	default:
		return &connector.DesyncError{Op: "SetRequest", Reason: "request headers already sent"}
	}
}

// SendRequestHeaders writes the request line and headers. The native
// request is cleared and refilled from the request header list first,
// so only the fields in that list go out.
//
// Body framing follows the headers sent: chunked if Transfer-Encoding
// includes chunked, otherwise by Content-Length, otherwise no body.
func (c *Call) SendRequestHeaders() error {
	switch c.phase {
	case phaseClosed:
		return connector.ErrCallClosed
	case phaseNew:
	default:
		return &connector.DesyncError{Op: "SendRequestHeaders", Reason: "request headers already sent"}
	}

	local := c.requestHeaders()
	if err := validateRequestHead(c.method, c.path, local); err != nil {
		c.fail(err)
		return err
	}
	kind, n, err := requestFraming(local)
	if err != nil {
		c.fail(err)
		return err
	}
	c.native.Dispose()
	for _, f := range local.Fields() {
		c.native.Add(f.Name, f.Value)
	}
	w := c.conn.Writer()
	if err = wire.WriteHead(w, c.method+" "+c.path+" HTTP/1.1", c.native.Fields()); err != nil {
		c.fail(err)
		return err
	}

	c.reqFraming = kind
	switch kind {
	case wire.FramingChunked:
		c.reqChunked = httputil.NewChunkedWriter(w)
		c.reqWriter = c.reqChunked
	case wire.FramingLength:
		c.reqWriter = &wire.LengthWriter{W: w, Remaining: n}
	default:
		c.reqWriter = noBodyWriter{}
	}
	c.phase = phaseRequestBody
	return nil
}

// RequestBody returns a writer for the request body, sending the
// request headers first if they are still pending. Closing the writer
// finishes the body; ReceiveResponse does so too.
func (c *Call) RequestBody() (io.Writer, error) {
	switch c.phase {
	case phaseClosed:
		return nil, connector.ErrCallClosed
	case phaseResponse:
		return nil, &connector.DesyncError{Op: "RequestBody", Reason: "response already received"}
	case phaseNew:
		if err := c.SendRequestHeaders(); err != nil {
			return nil, err
		}
	}
	return requestBody{c}, nil
}

// ReceiveResponse finishes the request and reads the response status
// line and headers. Interim 1xx responses are skipped.
func (c *Call) ReceiveResponse() error {
	switch c.phase {
	case phaseClosed:
		return connector.ErrCallClosed
	case phaseResponse:
		return &connector.DesyncError{Op: "ReceiveResponse", Reason: "response already received"}
	case phaseNew:
		if err := c.SendRequestHeaders(); err != nil {
			return err
		}
	}
	if c.err != nil {
		return c.err
	}
	if err := c.finishRequest(); err != nil {
		return err
	}

	tp := textproto.NewReader(c.conn.Reader())
	var head *responseHead
	for {
		var err error
		if head, err = readResponseHead(tp); err != nil {
			c.fail(err)
			return err
		}
		if !head.interim() {
			break
		}
	}
	kind, n, err := head.framing(c.method)
	if err != nil {
		c.fail(err)
		return err
	}

	c.head = head
	c.respFraming = kind
	c.respBody = &responseBody{c: c, tp: tp}
	switch kind {
	case wire.FramingChunked:
		c.respBody.r = httputil.NewChunkedReader(c.conn.Reader())
	case wire.FramingLength:
		c.respBody.r = &wire.LengthReader{R: c.conn.Reader(), Remaining: n}
	case wire.FramingClose:
		c.respBody.r = c.conn.Reader()
	default:
		c.respBody.done = true
	}
	c.phase = phaseResponse
	return nil
}

func (c *Call) finishRequest() error {
	if c.reqFinished {
		return c.err
	}
	c.reqFinished = true
	switch c.reqFraming {
	case wire.FramingChunked:
		if err := c.reqChunked.Close(); err != nil {
			c.fail(err)
			return err
		}
		if _, err := io.WriteString(c.conn.Writer(), "\r\n"); err != nil {
			c.fail(err)
			return err
		}
	case wire.FramingLength:
		if lw := c.reqWriter.(*wire.LengthWriter); lw.Remaining > 0 {
			err := &connector.DesyncError{Op: "RequestBody", Reason: "request body shorter than Content-Length"}
			c.fail(err)
			return err
		}
	}
	if err := c.conn.Writer().Flush(); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// ResponseBody returns a reader over the response body. It fails until
// the response has been received.
func (c *Call) ResponseBody() (io.Reader, error) {
	if err := c.responseReady("ResponseBody"); err != nil {
		return nil, err
	}
	return c.respBody, nil
}

// Endpoint returns the endpoint of the connection.
func (c *Call) Endpoint() connector.Endpoint {
	return c.conn.Endpoint()
}

func (c *Call) responseReady(op string) error {
	switch c.phase {
	case phaseClosed:
		return connector.ErrCallClosed
	case phaseResponse:
		return nil
	default:
		return &connector.DesyncError{Op: op, Reason: "response not received"}
	}
}

// fail records the first error seen on the connection.
func (c *Call) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// reuseBlocker returns the reason the connection cannot go back to the
// pool, or nil if it can.
func (c *Call) reuseBlocker() error {
	if c.err != nil {
		return c.err
	}
	switch c.phase {
	case phaseNew:
		return nil
	case phaseRequestBody:
		return &connector.DesyncError{Op: "Release", Reason: "response not received"}
	}
	if !c.respBody.done {
		return &connector.DesyncError{Op: "Release", Reason: "response body not fully read"}
	}
	if c.respFraming == wire.FramingClose {
		return errCloseDelimited
	}
	if c.native.HasToken("Connection", "close") || !c.head.keepAlive() {
		return errConnectionClose
	}
	return nil
}

type requestBody struct {
	c *Call
}

func (b requestBody) Write(p []byte) (int, error) {
	c := b.c
	switch {
	case c.phase == phaseClosed:
		return 0, connector.ErrCallClosed
	case c.phase == phaseResponse || c.reqFinished:
		return 0, &connector.DesyncError{Op: "RequestBody", Reason: "request body already finished"}
	}
	n, err := c.reqWriter.Write(p)
	if err != nil {
		c.fail(err)
	}
	return n, err
}

func (b requestBody) Close() error {
	if b.c.phase == phaseClosed {
		return connector.ErrCallClosed
	}
	return b.c.finishRequest()
}

type responseBody struct {
	c    *Call
	tp   *textproto.Reader
	r    io.Reader
	done bool
}

func (b *responseBody) Read(p []byte) (int, error) {
	c := b.c
	if c.phase == phaseClosed {
		return 0, connector.ErrCallClosed
	}
	if b.done {
		return 0, io.EOF
	}
	n, err := b.r.Read(p)
	if err == io.EOF {
		if c.respFraming == wire.FramingChunked {
			if terr := wire.ReadTrailer(b.tp); terr != nil {
				c.fail(terr)
				return n, terr
			}
		}
		b.done = true
	} else if err != nil {
		c.fail(err)
	}
	return n, err
}
