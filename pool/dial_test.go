// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gogama/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetDialer(t *testing.T) {
	t.Run("tcp", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()
		go func() {
			if s, err := ln.Accept(); err == nil {
				_ = s.Close()
			}
		}()
		ep := endpointOf(t, "http://"+ln.Addr().String())
		d := &NetDialer{}
		nc, err := d.Dial(context.Background(), ep)
		require.NoError(t, err)
		defer nc.Close()
		assert.IsType(t, &net.TCPConn{}, nc)
	})
	t.Run("tls", func(t *testing.T) {
		ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()
		roots := ts.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs
		ep := endpointOf(t, ts.URL)
		require.True(t, ep.Confidential)
		d := &NetDialer{Timeout: 5 * time.Second, TLSConfig: &tls.Config{RootCAs: roots}}
		nc, err := d.Dial(context.Background(), ep)
		require.NoError(t, err)
		defer nc.Close()
		tlsConn, ok := nc.(*tls.Conn)
		require.True(t, ok)
		assert.True(t, tlsConn.ConnectionState().HandshakeComplete)
	})
	t.Run("tls untrusted", func(t *testing.T) {
		ts := httptest.NewTLSServer(http.NotFoundHandler())
		defer ts.Close()
		d := &NetDialer{}
		_, err := d.Dial(context.Background(), endpointOf(t, ts.URL))
		assert.Error(t, err)
	})
	t.Run("refused", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())
		d := &NetDialer{Timeout: time.Second}
		_, err = d.Dial(context.Background(), endpointOf(t, "http://"+addr))
		assert.Error(t, err)
	})
	t.Run("tlsConfig", func(t *testing.T) {
		d := &NetDialer{TLSConfig: &tls.Config{ServerName: "custom", NextProtos: []string{"h2"}}}
		cfg := d.tlsConfig("example.com:443")
		assert.Equal(t, "custom", cfg.ServerName)
		assert.Equal(t, []string{"h2"}, cfg.NextProtos)
		cfg = (&NetDialer{}).tlsConfig("example.com:443")
		assert.Equal(t, "example.com", cfg.ServerName)
		assert.Equal(t, []string{"http/1.1"}, cfg.NextProtos)
	})
}

func endpointOf(t *testing.T, rawURL string) connector.Endpoint {
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return connector.Endpoint{Host: u.Hostname(), Port: port, Confidential: u.Scheme == "https"}
}
