// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/header"
	"github.com/gogama/connector/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var socketTypes = []connector.Type{connector.TypeBlockingChannel, connector.TypeSocket}

func TestSocketCall_RequestHeaders(t *testing.T) {
	for _, typ := range socketTypes {
		t.Run(typ.String(), func(t *testing.T) {
			type seen struct {
				hosts  []string
				first  string
				accept string
				uri    string
				fields []header.Field
			}
			got := make(chan seen, 1)
			h := startHelper(t, Config{Type: typ}, connector.DispatcherFunc(func(c connector.ServerCall) {
				var s seen
				s.uri = c.RequestURI()
				hl, err := c.RequestHeaders()
				if assert.NoError(t, err) {
					s.hosts = hl.All("Host")
					s.first, _ = hl.First("host")
					s.accept = hl.Get("ACCEPT")
					s.fields = hl.Fields()
				}
				got <- s
			}))
			conn, br := dial(t, h)
			roundTrip(t, conn, br, "GET /y HTTP/1.1\r\nHost: x\r\nHost: y\r\nAccept: */*\r\n\r\n")
			assert.Equal(t, seen{
				hosts:  []string{"x", "y"},
				first:  "x",
				accept: "*/*",
				uri:    "http://x/y",
				fields: []header.Field{{Name: "Host", Value: "x"}, {Name: "Host", Value: "y"}, {Name: "Accept", Value: "*/*"}},
			}, <-got)
		})
	}
}

func TestSocketCall_RequestURIFollowsHeaders(t *testing.T) {
	uris := make(chan string, 1)
	h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
		hl, _ := c.RequestHeaders()
		hl.Set("Host", "rewritten")
		uris <- c.RequestURI()
	}))
	conn, br := dial(t, h)
	roundTrip(t, conn, br, "GET /p HTTP/1.1\r\nHost: original\r\n\r\n")
	assert.Equal(t, "http://rewritten/p", <-uris)
}

func TestCall_RequestURIAbsoluteForm(t *testing.T) {
	for _, typ := range connector.Types() {
		t.Run(typ.String(), func(t *testing.T) {
			uris := make(chan string, 1)
			h := startHelper(t, Config{Type: typ}, connector.DispatcherFunc(func(c connector.ServerCall) {
				uris <- c.RequestURI()
			}))
			conn, br := dial(t, h)
			roundTrip(t, conn, br, "GET http://x/p?q=1 HTTP/1.1\r\nHost: x\r\n\r\n")
			assert.Equal(t, "http://x/p?q=1", <-uris)
		})
	}
}

func TestSplitTarget(t *testing.T) {
	testCases := []struct {
		target, authority, path string
	}{
		{"/p?q=1", "", "/p?q=1"},
		{"*", "", "*"},
		{"http://x/p?q=1", "x", "/p?q=1"},
		{"https://x:8443", "x:8443", "/"},
		{"example.com:443", "", "example.com:443"},
	}
	for _, tc := range testCases {
		t.Run(tc.target, func(t *testing.T) {
			authority, path := splitTarget(tc.target)
			assert.Equal(t, tc.authority, authority)
			assert.Equal(t, tc.path, path)
		})
	}
}

func TestSocketCall_MalformedRequestHeader(t *testing.T) {
	lens := make(chan int, 1)
	h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
		hl, err := c.RequestHeaders()
		assert.NoError(t, err)
		lens <- hl.Len()
	}))
	conn, br := dial(t, h)
	resp := roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\nno colon here\r\n\r\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, <-lens)
}

func TestSocketCall_ResponseHeaders(t *testing.T) {
	t.Run("clear before write", func(t *testing.T) {
		native := make(chan []string, 1)
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			hl, err := c.ResponseHeaders()
			if !assert.NoError(t, err) {
				return
			}
			var names []string
			for _, f := range hl.Fields() {
				names = append(names, f.Name)
			}
			native <- names
			assert.Equal(t, serverName, hl.Get("Server"))
			hl.Del("Server")
			hl.Add("X-Y", "z")
			hl.Set("Content-Length", "0")
			assert.NoError(t, c.SendResponseHeaders())
			again, _ := c.ResponseHeaders()
			assert.Same(t, hl, again)
		}))
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
		assert.Equal(t, []string{"Server", "Date"}, <-native)
		assert.Empty(t, resp.Header.Values("Server"))
		assert.NotEmpty(t, resp.Header.Get("Date"))
		assert.Equal(t, "z", resp.Header.Get("X-Y"))
		assert.Equal(t, int64(0), resp.ContentLength)
	})
	t.Run("wire order", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			hl, _ := c.ResponseHeaders()
			hl.Dispose()
			hl.Add("B", "1")
			hl.Add("A", "2")
			hl.Add("B", "3")
			hl.Add("Content-Length", "0")
		}))
		conn, err := dialRaw(h)
		require.NoError(t, err)
		defer conn.Close()
		_, err = io.WriteString(conn, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
		require.NoError(t, err)
		tp := textproto.NewReader(bufio.NewReader(conn))
		line, err := tp.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK", line)
		var lines []string
		for {
			line, err = tp.ReadLine()
			require.NoError(t, err)
			if line == "" {
				break
			}
			lines = append(lines, line)
		}
		assert.Equal(t, []string{"B: 1", "A: 2", "B: 3", "Content-Length: 0"}, lines)
	})
}

func TestSocketCall_Framing(t *testing.T) {
	t.Run("chunked by default", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, echo)
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 3\r\n\r\nabc")
		assert.Equal(t, []string{"chunked"}, resp.TransferEncoding)
		assert.Equal(t, "abc", readBody(t, resp))
		assert.False(t, resp.Close)
	})
	t.Run("HTTP/1.0", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, echo)
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "POST / HTTP/1.0\r\nContent-Length: 3\r\n\r\nabc")
		assert.True(t, resp.Close)
		assert.Nil(t, resp.TransferEncoding)
		assert.Equal(t, "abc", readBody(t, resp))
		assertClosed(t, conn, br)
	})
	t.Run("HTTP/1.0 keep-alive", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, hello)
		conn, br := dial(t, h)
		for i := 0; i < 2; i++ {
			resp := roundTrip(t, conn, br, "GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
			assert.Equal(t, "hello", readBody(t, resp))
			assert.False(t, resp.Close)
		}
	})
	t.Run("request close", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, hello)
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\nConnection: close\r\n\r\n")
		assert.True(t, resp.Close)
		assert.Equal(t, "hello", readBody(t, resp))
		assertClosed(t, conn, br)
	})
	t.Run("response close", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			hl, _ := c.ResponseHeaders()
			hl.Set("Connection", "close")
			hl.Set("Content-Length", "0")
		}))
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
		assert.True(t, resp.Close)
		assertClosed(t, conn, br)
	})
	t.Run("head", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			hl, _ := c.ResponseHeaders()
			hl.Set("Content-Length", "5")
			w, _ := c.ResponseBody()
			n, err := io.WriteString(w, "hello")
			assert.NoError(t, err)
			assert.Equal(t, 5, n)
		}))
		conn, br := dial(t, h)
		_, err := io.WriteString(conn, "HEAD / HTTP/1.1\r\nHost: a\r\n\r\n")
		require.NoError(t, err)
		resp, err := http.ReadResponse(br, &http.Request{Method: http.MethodHead})
		require.NoError(t, err)
		assert.Equal(t, int64(5), resp.ContentLength)
		resp = roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
		assert.Equal(t, "hello", readBody(t, resp))
	})
	t.Run("body too long", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			hl, _ := c.ResponseHeaders()
			hl.Set("Content-Length", "2")
			w, _ := c.ResponseBody()
			_, err := io.WriteString(w, "abc")
			assert.Same(t, wire.ErrBodyTooLong, err)
			_, err = io.WriteString(w, "ab")
			assert.NoError(t, err)
		}))
		conn, br := dial(t, h)
		for i := 0; i < 2; i++ {
			resp := roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
			assert.Equal(t, "ab", readBody(t, resp))
		}
	})
	t.Run("body too short", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			hl, _ := c.ResponseHeaders()
			hl.Set("Content-Length", "10")
			w, _ := c.ResponseBody()
			_, _ = io.WriteString(w, "abc")
		}))
		conn, br := dial(t, h)
		_, err := io.WriteString(conn, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
		require.NoError(t, err)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		resp, err := http.ReadResponse(br, nil)
		require.NoError(t, err)
		_, err = io.ReadAll(resp.Body)
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})
}

func TestSocketCall_RequestBody(t *testing.T) {
	t.Run("unread body drained", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, hello)
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 7\r\n\r\nignored")
		assert.False(t, resp.Close)
		resp = roundTrip(t, conn, br, "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: chunked\r\n\r\n2\r\nno\r\n0\r\n\r\n")
		assert.Equal(t, "hello", readBody(t, resp))
		resp = roundTrip(t, conn, br, "GET / HTTP/1.1\r\nHost: a\r\n\r\n")
		assert.Equal(t, "hello", readBody(t, resp))
	})
	t.Run("expect continue", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, echo)
		conn, br := dial(t, h)
		_, err := io.WriteString(conn, "PUT / HTTP/1.1\r\nHost: a\r\nExpect: 100-continue\r\nContent-Length: 4\r\n\r\n")
		require.NoError(t, err)
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		interim, err := http.ReadResponse(br, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusContinue, interim.StatusCode)
		resp := roundTrip(t, conn, br, "data")
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "data", readBody(t, resp))
	})
	t.Run("expect continue unread", func(t *testing.T) {
		h := startHelper(t, Config{Type: connector.TypeSocket}, hello)
		conn, br := dial(t, h)
		resp := roundTrip(t, conn, br, "PUT / HTTP/1.1\r\nHost: a\r\nExpect: 100-continue\r\nContent-Length: 4\r\n\r\n")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "hello", readBody(t, resp))
		assertClosed(t, conn, br)
	})
	t.Run("truncated", func(t *testing.T) {
		errs := make(chan error, 1)
		h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(c connector.ServerCall) {
			r, _ := c.RequestBody()
			_, err := io.ReadAll(r)
			errs <- err
		}))
		conn, _ := dial(t, h)
		_, err := io.WriteString(conn, "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 10\r\n\r\nabc")
		require.NoError(t, err)
		require.NoError(t, conn.(interface{ CloseWrite() error }).CloseWrite())
		select {
		case err = <-errs:
			assert.Equal(t, io.ErrUnexpectedEOF, err)
		case <-time.After(5 * time.Second):
			t.Fatal("dispatch did not see the truncated body")
		}
	})
}

func TestSocketCall_BadRequest(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"request line", "garbage\r\n\r\n"},
		{"version", "GET / HTTP/2.0\r\n\r\n"},
		{"method", "G(T / HTTP/1.1\r\n\r\n"},
		{"transfer coding", "POST / HTTP/1.1\r\nHost: a\r\nTransfer-Encoding: gzip\r\n\r\n"},
		{"content length", "POST / HTTP/1.1\r\nHost: a\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\n"},
	}
	h := startHelper(t, Config{Type: connector.TypeSocket}, connector.DispatcherFunc(func(connector.ServerCall) {
		t.Error("dispatched a bad request")
	}))
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			conn, br := dial(t, h)
			resp := roundTrip(t, conn, br, testCase.raw)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.True(t, resp.Close)
			assertClosed(t, conn, br)
		})
	}
}

func TestParseRequestLine(t *testing.T) {
	req, err := parseRequestLine("OPTIONS * HTTP/1.0")
	require.NoError(t, err)
	assert.Equal(t, &request{method: "OPTIONS", target: "*", major: 1, minor: 0}, req)
	for _, line := range []string{"", "GET", "GET /", "GET  HTTP/1.1", "GET / FTP/1.1", "GET / HTTP/3.0"} {
		_, err = parseRequestLine(line)
		assert.True(t, connector.IsDesync(err), line)
	}
}

func TestRequest_KeepAlive(t *testing.T) {
	testCases := []struct {
		minor int
		lines wire.Lines
		want  bool
	}{
		{1, nil, true},
		{1, wire.Lines{"Connection: close"}, false},
		{1, wire.Lines{"Connection: Upgrade, Close"}, false},
		{0, nil, false},
		{0, wire.Lines{"Connection: Keep-Alive"}, true},
	}
	for _, testCase := range testCases {
		req := &request{major: 1, minor: testCase.minor, lines: testCase.lines}
		assert.Equal(t, testCase.want, req.keepAlive(), "%d %v", testCase.minor, testCase.lines)
	}
	assert.True(t, (&request{lines: wire.Lines{"Expect: 100-Continue"}}).expectContinue())
	assert.False(t, (&request{}).expectContinue())
}

func TestDrain(t *testing.T) {
	assert.True(t, drain(strings.NewReader("abc")))
	assert.True(t, drain(strings.NewReader(strings.Repeat("x", maxDrain))))
	assert.False(t, drain(strings.NewReader(strings.Repeat("x", maxDrain+1))))
	assert.False(t, drain(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(io.ErrUnexpectedEOF))))
}

func dialRaw(h *Helper) (net.Conn, error) {
	return net.DialTimeout("tcp", h.Addr().String(), 5*time.Second)
}

func assertClosed(t *testing.T, conn net.Conn, br *bufio.Reader) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := br.ReadByte()
	assert.Equal(t, io.EOF, err)
}
