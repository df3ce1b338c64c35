// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/gogama/connector"
	"github.com/gogama/connector/header"
	"github.com/gogama/connector/internal/wire"
	"golang.org/x/net/http/httpguts"
)

var (
	errBodyNotDeclared = errors.New("connector/client: request body needs Content-Length or chunked Transfer-Encoding")
	errCloseDelimited  = errors.New("connector/client: response body delimited by connection close")
	errConnectionClose = errors.New("connector/client: connection close requested")
)

func validateRequestHead(method, path string, h *header.List) error {
	if !httpguts.ValidHeaderFieldName(method) {
		return fmt.Errorf("connector/client: invalid method %q", method)
	}
	if path == "" || strings.ContainsAny(path, " \t\r\n") {
		return fmt.Errorf("connector/client: invalid request path %q", path)
	}
	return wire.ValidFields(h.Fields())
}

// requestFraming reads body framing from the request headers. A
// request declaring neither a length nor chunked coding has no body.
func requestFraming(h *header.List) (wire.Framing, int64, error) {
	if h.HasToken("Transfer-Encoding", "chunked") {
		return wire.FramingChunked, 0, nil
	}
	return wire.ContentLength(h.All("Content-Length"))
}

// A responseHead is a parsed status line plus the raw header lines of
// a response.
type responseHead struct {
	major, minor int
	status       int
	reason       string
	lines        wire.Lines
}

func readResponseHead(r *textproto.Reader) (*responseHead, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	head, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}
	if head.lines, err = wire.ReadLines(r); err != nil {
		return nil, err
	}
	return head, nil
}

func parseStatusLine(line string) (*responseHead, error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok {
		return nil, malformedStatus(line)
	}
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok || major != 1 {
		return nil, malformedStatus(line)
	}
	code, reason, _ := strings.Cut(rest, " ")
	if len(code) != 3 {
		return nil, malformedStatus(line)
	}
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 {
		return nil, malformedStatus(line)
	}
	return &responseHead{major: major, minor: minor, status: status, reason: reason}, nil
}

func malformedStatus(line string) error {
	return &connector.DesyncError{Op: "ReceiveResponse", Reason: fmt.Sprintf("malformed status line %q", line)}
}

func (head *responseHead) interim() bool {
	return head.status >= 100 && head.status < 200 && head.status != http.StatusSwitchingProtocols
}

func (head *responseHead) framing(method string) (wire.Framing, int64, error) {
	if method == http.MethodHead || head.status < 200 || head.status == http.StatusNoContent || head.status == http.StatusNotModified {
		return wire.FramingNone, 0, nil
	}
	if te := head.lines.Values("Transfer-Encoding"); len(te) > 0 {
		if httpguts.HeaderValuesContainsToken(te, "chunked") {
			return wire.FramingChunked, 0, nil
		}
		return wire.FramingClose, 0, nil
	}
	if cl := head.lines.Values("Content-Length"); len(cl) > 0 {
		return wire.ContentLength(cl)
	}
	return wire.FramingClose, 0, nil
}

// keepAlive reports whether the response permits another exchange on
// the connection.
func (head *responseHead) keepAlive() bool {
	conn := head.lines.Values("Connection")
	if httpguts.HeaderValuesContainsToken(conn, "close") {
		return false
	}
	if head.minor == 0 {
		return httpguts.HeaderValuesContainsToken(conn, "keep-alive")
	}
	return head.status != http.StatusSwitchingProtocols
}

type noBodyWriter struct{}

func (noBodyWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return 0, errBodyNotDeclared
}
