// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"

	"github.com/gogama/connector"
	"github.com/gogama/connector/header"
	"github.com/gogama/connector/internal/wire"
)

func (h *Helper) serveSelect(srv *http.Server, ln net.Listener) {
	defer h.wg.Done()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server on %v failed: %v", ln.Addr(), err)
	}
}

func (h *Helper) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer h.wg.Done()
	c := newHTTPCall(w, r)
	h.d.Dispatch(c)
	c.finish()
}

// An httpCall adapts a net/http exchange to connector.ServerCall.
//
// net/http keeps headers in maps, so materialized lists hold the Host
// header first and then the remaining fields grouped by name in
// sorted name order. Values of one name keep their wire order. net/http
// always writes the standard reason phrase for the status code; the
// reason set with SetResponseStatus is only reported back by
// ResponseStatus.
type httpCall struct {
	w http.ResponseWriter
	r *http.Request

	reqHeaders  header.Lazy
	respHeaders header.Lazy

	status int
	reason string
	sent   bool
	closed bool
}

func newHTTPCall(w http.ResponseWriter, r *http.Request) *httpCall {
	return &httpCall{
		w:      w,
		r:      r,
		status: http.StatusOK,
		reason: http.StatusText(http.StatusOK),
	}
}

func (c *httpCall) Confidential() bool {
	return c.r.TLS != nil
}

func (c *httpCall) RequestAddress() string {
	return hostOf(c.r.RemoteAddr)
}

func (c *httpCall) ResponseAddress() string {
	if addr, ok := c.r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		return hostOf(addr.String())
	}
	return ""
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (c *httpCall) RequestMethod() string {
	return c.r.Method
}

func (c *httpCall) RequestURI() string {
	host := c.r.Host
	if c.reqHeaders.State() == header.Materialized {
		host, _ = c.reqHeaders.List().First("Host")
	}
	return scheme(c.Confidential()) + "://" + host + c.r.URL.RequestURI()
}

func scheme(confidential bool) string {
	if confidential {
		return connector.HTTPS.Scheme()
	}
	return connector.HTTP.Scheme()
}

func (c *httpCall) RequestHeaders() (*header.List, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	var src header.Source
	if c.reqHeaders.State() == header.Unmaterialized {
		fields := make(header.Fields, 0, len(c.r.Header)+2)
		if c.r.Host != "" {
			fields = append(fields, header.Field{Name: "Host", Value: c.r.Host})
		}
		for _, te := range c.r.TransferEncoding {
			fields = append(fields, header.Field{Name: "Transfer-Encoding", Value: te})
		}
		src = appendSorted(fields, c.r.Header)
	}
	return c.reqHeaders.Materialize(src, nil), nil
}

func appendSorted(fields header.Fields, h http.Header) header.Fields {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range h[name] {
			fields = append(fields, header.Field{Name: name, Value: v})
		}
	}
	return fields
}

func (c *httpCall) ResponseStatus() (int, string) {
	return c.status, c.reason
}

func (c *httpCall) ResponseHeaders() (*header.List, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return c.responseHeaders(), nil
}

func (c *httpCall) responseHeaders() *header.List {
	var src header.Source
	if c.respHeaders.State() == header.Unmaterialized {
		src = appendSorted(nil, c.w.Header())
	}
	return c.respHeaders.Materialize(src, nil)
}

func (c *httpCall) SetResponseStatus(code int, reason string) {
	c.status, c.reason = code, reason
}

// SendResponseHeaders clears the native response headers, copies the
// local list into them and writes the head.
func (c *httpCall) SendResponseHeaders() error {
	switch {
	case c.closed:
		return connector.ErrCallClosed
	case c.sent:
		return &connector.DesyncError{Op: "SendResponseHeaders", Reason: "response headers already sent"}
	case c.status < 100 || c.status > 999:
		return fmt.Errorf("connector/server: invalid status code %d", c.status)
	}
	local := c.responseHeaders()
	if err := wire.ValidFields(local.Fields()); err != nil {
		return err
	}
	native := c.w.Header()
	for name := range native {
		delete(native, name)
	}
	for _, f := range local.Fields() {
		native.Add(f.Name, f.Value)
	}
	c.w.WriteHeader(c.status)
	c.sent = true
	return nil
}

func (c *httpCall) RequestBody() (io.Reader, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return httpRequestBody{c}, nil
}

func (c *httpCall) ResponseBody() (io.Writer, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return httpResponseBody{c}, nil
}

// RequestChannel is unsupported: net/http only exposes the request
// body as a stream.
func (c *httpCall) RequestChannel() (connector.ReadChannel, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	return nil, connector.ErrUnsupported
}

// ResponseChannel is supported when the native writer implements
// io.ReaderFrom, as net/http's does.
func (c *httpCall) ResponseChannel() (connector.WriteChannel, error) {
	if c.closed {
		return nil, connector.ErrCallClosed
	}
	if _, ok := c.w.(io.ReaderFrom); !ok {
		return nil, connector.ErrUnsupported
	}
	return httpResponseChannel{httpResponseBody{c}}, nil
}

func (c *httpCall) ensureSent() error {
	if c.closed {
		return connector.ErrCallClosed
	}
	if c.sent {
		return nil
	}
	return c.SendResponseHeaders()
}

// finish sends pending response headers and closes the call.
func (c *httpCall) finish() {
	if !c.sent {
		if err := c.SendResponseHeaders(); err != nil {
			log.Errorf("Unable to send response headers for %s %s: %v", c.r.Method, c.r.RequestURI, err)
			c.w.WriteHeader(http.StatusInternalServerError)
		}
	}
	c.closed = true
}

type httpRequestBody struct {
	c *httpCall
}

func (b httpRequestBody) Read(p []byte) (int, error) {
	if b.c.closed {
		return 0, connector.ErrCallClosed
	}
	return b.c.r.Body.Read(p)
}

type httpResponseBody struct {
	c *httpCall
}

func (b httpResponseBody) Write(p []byte) (int, error) {
	if err := b.c.ensureSent(); err != nil {
		return 0, err
	}
	return b.c.w.Write(p)
}

type httpResponseChannel struct {
	httpResponseBody
}

func (ch httpResponseChannel) ReadFrom(r io.Reader) (int64, error) {
	if err := ch.c.ensureSent(); err != nil {
		return 0, err
	}
	return ch.c.w.(io.ReaderFrom).ReadFrom(r)
}
