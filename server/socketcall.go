// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/header"
	"github.com/gogama/connector/internal/wire"
)

// serverName is the Server header every socket response starts with.
const serverName = "connector"

const internalError = "HTTP/1.1 500 Internal Server Error\r\nConnection: close\r\nContent-Length: 0\r\n\r\n"

// A socketCall is one exchange on a connection served by the socket
// engine. It implements connector.ServerCall; the channel accessors
// are only supported for the blocking-channel connector type.
//
// The native response starts out with Server and Date headers.
type socketCall struct {
	conn         net.Conn
	bw           *bufio.Writer
	tp           *textproto.Reader
	req          *request
	confidential bool
	channels     bool

	reqHeaders  header.Lazy
	respHeaders header.Lazy
	native      header.List

	status    int
	reason    string
	sent      bool
	closed    bool
	keepAlive bool
	err       error

	body      io.Reader
	bodyDone  bool
	continued bool

	respFraming wire.Framing
	respWriter  io.Writer
	respChunked io.WriteCloser
}

func newSocketCall(nc net.Conn, br *bufio.Reader, bw *bufio.Writer, req *request, confidential, channels bool) *socketCall {
	c := &socketCall{
		conn:         nc,
		bw:           bw,
		tp:           textproto.NewReader(br),
		req:          req,
		confidential: confidential,
		channels:     channels,
		status:       http.StatusOK,
		reason:       http.StatusText(http.StatusOK),
		keepAlive:    req.keepAlive(),
	}
	c.native.Add("Server", serverName)
	c.native.Add("Date", time.Now().UTC().Format(http.TimeFormat))
	switch req.framing {
	case wire.FramingChunked:
		c.body = httputil.NewChunkedReader(br)
	case wire.FramingLength:
		c.body = &wire.LengthReader{R: br, Remaining: req.length}
	default:
		c.bodyDone = true
	}
	return c
}

func (c *socketCall) Confidential() bool {
	return c.confidential
}

func (c *socketCall) RequestAddress() string {
	return hostOf(c.conn.RemoteAddr().String())
}

func (c *socketCall) ResponseAddress() string {
	return hostOf(c.conn.LocalAddr().String())
}

func (c *socketCall) RequestMethod() string {
	return c.req.method
}

func (c *socketCall) RequestURI() string {
	var host string
	if c.reqHeaders.State() == header.Materialized {
		host, _ = c.reqHeaders.List().First("Host")
	} else if hosts := c.req.lines.Values("Host"); len(hosts) > 0 {
		host = hosts[0]
	}
	authority, path := splitTarget(c.req.target)
	if host == "" {
		host = authority
	}
	return scheme(c.confidential) + "://" + host + path
}

// splitTarget separates an absolute-form request target into its
// authority and its path and query. Other forms are returned as the
// path unchanged.
func splitTarget(target string) (authority, path string) {
	if strings.HasPrefix(target, "/") || target == "*" {
		return "", target
	}
	u, err := url.ParseRequestURI(target)
	if err != nil || u.Host == "" {
		return "", target
	}
	return u.Host, u.RequestURI()
}

func (c *socketCall) RequestHeaders() (*header.List, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return c.reqHeaders.Materialize(c.req.lines, func(err error) {
		log.Errorf("Dropping request headers of %s %s: %v", c.req.method, c.req.target, err)
	}), nil
}

func (c *socketCall) ResponseStatus() (int, string) {
	return c.status, c.reason
}

func (c *socketCall) ResponseHeaders() (*header.List, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return c.responseHeaders(), nil
}

func (c *socketCall) responseHeaders() *header.List {
	return c.respHeaders.Materialize(header.Fields(c.native.Fields()), nil)
}

func (c *socketCall) SetResponseStatus(code int, reason string) {
	c.status, c.reason = code, reason
}

// SendResponseHeaders clears the native response headers, copies the
// local list into them and writes the head.
//
// If the local list declares no body framing, chunked coding is added
// for HTTP/1.1 clients, and Connection: close for HTTP/1.0 clients
// whose response body then runs until the connection closes. The
// framing fields are added to the local list too, so the local and
// native lists stay equal.
func (c *socketCall) SendResponseHeaders() error {
	switch {
	case c.closed:
		return connector.ErrCallClosed
	case c.sent:
		return &connector.DesyncError{Op: "SendResponseHeaders", Reason: "response headers already sent"}
	case c.status < 100 || c.status > 999:
		return fmt.Errorf("connector/server: invalid status code %d", c.status)
	case !header.ValidValue(c.reason):
		return fmt.Errorf("connector/server: invalid reason phrase %q", c.reason)
	}
	local := c.responseHeaders()
	if err := wire.ValidFields(local.Fields()); err != nil {
		return err
	}
	kind, n, err := c.responseFraming(local)
	if err != nil {
		return err
	}
	if local.HasToken("Connection", "close") {
		c.keepAlive = false
	} else if !c.keepAlive {
		local.Add("Connection", "close")
	}

	c.native.Dispose()
	for _, f := range local.Fields() {
		c.native.Add(f.Name, f.Value)
	}
	statusLine := "HTTP/1.1 " + strconv.Itoa(c.status) + " " + c.reason
	if err = wire.WriteHead(c.bw, statusLine, c.native.Fields()); err != nil {
		c.fail(err)
		return err
	}
	c.sent = true

	c.respFraming = kind
	switch kind {
	case wire.FramingChunked:
		c.respChunked = httputil.NewChunkedWriter(c.bw)
		c.respWriter = c.respChunked
	case wire.FramingLength:
		c.respWriter = &wire.LengthWriter{W: c.bw, Remaining: n}
	case wire.FramingClose:
		c.respWriter = c.bw
	default:
		if c.req.method == http.MethodHead {
			c.respWriter = io.Discard
		} else {
			c.respWriter = &wire.LengthWriter{W: c.bw}
		}
	}
	return nil
}

func (c *socketCall) responseFraming(local *header.List) (wire.Framing, int64, error) {
	if c.req.method == http.MethodHead || c.status < 200 || c.status == http.StatusNoContent || c.status == http.StatusNotModified {
		return wire.FramingNone, 0, nil
	}
	if local.HasToken("Transfer-Encoding", "chunked") {
		return wire.FramingChunked, 0, nil
	}
	if cl := local.All("Content-Length"); len(cl) > 0 {
		return wire.ContentLength(cl)
	}
	if c.req.minor > 0 {
		local.Add("Transfer-Encoding", "chunked")
		return wire.FramingChunked, 0, nil
	}
	c.keepAlive = false
	return wire.FramingClose, 0, nil
}

func (c *socketCall) RequestBody() (io.Reader, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return socketRequestBody{c}, nil
}

func (c *socketCall) ResponseBody() (io.Writer, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return socketResponseBody{c}, nil
}

func (c *socketCall) RequestChannel() (connector.ReadChannel, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	if !c.channels {
		return nil, connector.ErrUnsupported
	}
	return socketReadChannel{socketRequestBody{c}}, nil
}

func (c *socketCall) ResponseChannel() (connector.WriteChannel, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	if !c.channels {
		return nil, connector.ErrUnsupported
	}
	return socketWriteChannel{socketResponseBody{c}}, nil
}

// readBody reads the framed request body. An expected 100 Continue is
// sent before the first read.
func (c *socketCall) readBody(p []byte) (int, error) {
	if c.bodyDone {
		return 0, io.EOF
	}
	if !c.continued {
		c.continued = true
		if c.req.expectContinue() && !c.sent {
			_, _ = c.bw.WriteString("HTTP/1.1 100 Continue\r\n\r\n")
			if err := c.bw.Flush(); err != nil {
				c.fail(err)
				return 0, err
			}
		}
	}
	n, err := c.body.Read(p)
	if err == io.EOF {
		if c.req.framing == wire.FramingChunked {
			if terr := wire.ReadTrailer(c.tp); terr != nil {
				c.fail(terr)
				return n, terr
			}
		}
		c.bodyDone = true
	} else if err != nil {
		c.fail(err)
	}
	return n, err
}

func (c *socketCall) writeBody(p []byte) (int, error) {
	if c.closed {
		return 0, connector.ErrCallClosed
	}
	if !c.sent {
		if err := c.SendResponseHeaders(); err != nil {
			return 0, err
		}
	}
	n, err := c.respWriter.Write(p)
	if err != nil && err != wire.ErrBodyTooLong {
		c.fail(err)
	}
	return n, err
}

func (c *socketCall) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// finish completes the exchange after dispatch and closes the call.
// It reports whether the connection can carry another exchange.
func (c *socketCall) finish() bool {
	if !c.sent {
		if err := c.SendResponseHeaders(); err != nil {
			log.Errorf("Unable to send response headers for %s %s: %v", c.req.method, c.req.target, err)
			_, _ = c.bw.WriteString(internalError)
			c.keepAlive = false
		}
	}
	switch c.respFraming {
	case wire.FramingChunked:
		if err := c.respChunked.Close(); err != nil {
			c.fail(err)
		}
		_, _ = c.bw.WriteString("\r\n")
	case wire.FramingLength:
		if lw := c.respWriter.(*wire.LengthWriter); lw.Remaining > 0 {
			c.fail(&connector.DesyncError{Op: "ResponseBody", Reason: "response body shorter than Content-Length"})
		}
	}
	if err := c.bw.Flush(); err != nil {
		c.fail(err)
	}
	if c.err == nil && c.keepAlive && !c.bodyDone {
		if !c.continued && c.req.expectContinue() {
			c.keepAlive = false
		} else {
			c.continued = true
			c.keepAlive = drain(readerFunc(c.readBody))
		}
	}
	c.closed = true
	if c.err != nil {
		log.Debugf("Closing connection from %v: %v", c.conn.RemoteAddr(), c.err)
	}
	return c.err == nil && c.keepAlive
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	return f(p)
}

type socketRequestBody struct {
	c *socketCall
}

func (b socketRequestBody) Read(p []byte) (int, error) {
	if b.c.closed {
		return 0, connector.ErrCallClosed
	}
	return b.c.readBody(p)
}

type socketReadChannel struct {
	socketRequestBody
}

func (ch socketReadChannel) WriteTo(w io.Writer) (int64, error) {
	return io.Copy(w, ch.socketRequestBody)
}

type socketResponseBody struct {
	c *socketCall
}

func (b socketResponseBody) Write(p []byte) (int, error) {
	return b.c.writeBody(p)
}

type socketWriteChannel struct {
	socketResponseBody
}

func (ch socketWriteChannel) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(ch.socketResponseBody, r)
}
