// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/internal/wire"
	"golang.org/x/net/http/httpguts"
)

const (
	bufferSize = 4096
	// maxDrain is how much unread request body is skipped to keep a
	// connection alive after dispatch.
	maxDrain = 256 << 10
)

const badRequest = "HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n"

// serveSockets accepts connections and serves each on its own
// goroutine until the listener is closed.
func (h *Helper) serveSockets(ln net.Listener) {
	defer h.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Errorf("Accept on %v failed: %v", ln.Addr(), err)
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if !h.track(nc) {
			_ = nc.Close()
			return
		}
		go h.serveConn(nc)
	}
}

// track registers an accepted connection so Stop can close it.
func (h *Helper) track(nc net.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[nc] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Helper) untrack(nc net.Conn) {
	_ = nc.Close()
	h.mu.Lock()
	delete(h.conns, nc)
	h.mu.Unlock()
	h.wg.Done()
}

// serveConn runs exchanges on one connection, in order, until either
// side asks to close it or the framing is lost.
func (h *Helper) serveConn(nc net.Conn) {
	defer h.untrack(nc)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Dispatch on connection from %v panicked: %v", nc.RemoteAddr(), r)
		}
	}()

	br := bufio.NewReaderSize(nc, bufferSize)
	bw := bufio.NewWriterSize(nc, bufferSize)
	timeout := h.cfg.readHeaderTimeout()
	for {
		if timeout > 0 {
			_ = nc.SetReadDeadline(time.Now().Add(timeout))
		}
		req, err := readRequest(textproto.NewReader(br))
		if err != nil {
			if connector.IsDesync(err) {
				_, _ = bw.WriteString(badRequest)
				_ = bw.Flush()
			}
			return
		}
		_ = nc.SetReadDeadline(time.Time{})

		c := newSocketCall(nc, br, bw, req, h.cfg.TLSConfig != nil, h.cfg.Type == connector.TypeBlockingChannel)
		h.d.Dispatch(c)
		if !c.finish() {
			return
		}
	}
}

// A request is a parsed request line plus its raw header lines.
type request struct {
	method  string
	target  string
	major   int
	minor   int
	lines   wire.Lines
	framing wire.Framing
	length  int64
}

func readRequest(r *textproto.Reader) (*request, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}
	if req.lines, err = wire.ReadLines(r); err != nil {
		return nil, err
	}
	if req.framing, req.length, err = req.bodyFraming(); err != nil {
		return nil, &connector.DesyncError{Op: "ReadRequest", Reason: err.Error()}
	}
	return req, nil
}

func parseRequestLine(line string) (*request, error) {
	method, rest, ok1 := strings.Cut(line, " ")
	target, proto, ok2 := strings.Cut(rest, " ")
	if !ok1 || !ok2 || !httpguts.ValidHeaderFieldName(method) || target == "" {
		return nil, malformedRequest(line)
	}
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok || major != 1 {
		return nil, malformedRequest(line)
	}
	return &request{method: method, target: target, major: major, minor: minor}, nil
}

func malformedRequest(line string) error {
	return &connector.DesyncError{Op: "ReadRequest", Reason: fmt.Sprintf("malformed request line %q", line)}
}

// bodyFraming returns the request body framing. Requests are never
// delimited by connection close.
func (req *request) bodyFraming() (wire.Framing, int64, error) {
	if te := req.lines.Values("Transfer-Encoding"); len(te) > 0 {
		if httpguts.HeaderValuesContainsToken(te, "chunked") {
			return wire.FramingChunked, 0, nil
		}
		return wire.FramingNone, 0, fmt.Errorf("unsupported transfer coding %q", te)
	}
	return wire.ContentLength(req.lines.Values("Content-Length"))
}

// keepAlive reports whether the client allows another exchange on the
// connection.
func (req *request) keepAlive() bool {
	conn := req.lines.Values("Connection")
	if httpguts.HeaderValuesContainsToken(conn, "close") {
		return false
	}
	return req.minor > 0 || httpguts.HeaderValuesContainsToken(conn, "keep-alive")
}

func (req *request) expectContinue() bool {
	return httpguts.HeaderValuesContainsToken(req.lines.Values("Expect"), "100-continue")
}

// drain skips what is left of a body so the next request can be read.
func drain(r io.Reader) bool {
	n, err := io.CopyN(io.Discard, r, maxDrain+1)
	return err == io.EOF && n <= maxDrain
}
