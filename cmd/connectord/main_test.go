// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gogama/connector"
	"github.com/gogama/connector/client"
	"github.com/gogama/connector/pool"
	"github.com/gogama/connector/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig("", -1, "")
		require.NoError(t, err)
		assert.Equal(t, 8182, cfg.Server.Port)
		assert.Equal(t, connector.TypeSelect, cfg.Server.Type)
	})
	t.Run("overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n  type: select\n"), 0o644))
		cfg, err := loadConfig(path, 0, "3")
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Server.Port)
		assert.Equal(t, connector.TypeSocket, cfg.Server.Type)
	})
	t.Run("errors", func(t *testing.T) {
		_, err := loadConfig("", 70000, "")
		assert.Error(t, err)
		_, err = loadConfig("", -1, "nio")
		assert.Error(t, err)
		_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), -1, "")
		assert.Error(t, err)
	})
}

func TestMux(t *testing.T) {
	for _, typ := range connector.Types() {
		t.Run(typ.String(), func(t *testing.T) {
			upstream := startServer(t, server.Config{Type: typ}, newMux(nil))
			_, upstreamPort, err := net.SplitHostPort(upstream.Addr().String())
			require.NoError(t, err)

			cl := client.New(client.Config{Pool: pool.Config{MaxPerEndpoint: 2}})
			require.NoError(t, cl.Start())
			t.Cleanup(func() { _ = cl.Stop() })
			front := startServer(t, server.Config{Type: typ}, newMux(cl))
			base := "http://" + front.Addr().String()

			t.Run("echo", func(t *testing.T) {
				resp, err := http.Post(base+"/hello?x=1", "text/plain", strings.NewReader("body"))
				require.NoError(t, err)
				defer resp.Body.Close()
				b, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, resp.StatusCode)
				assert.True(t, strings.HasPrefix(string(b), "POST "+base+"/hello?x=1\n"), string(b))
				assert.Contains(t, string(b), "Content-Type: text/plain\n")
				assert.True(t, strings.HasSuffix(string(b), "\nbody"), string(b))
			})
			t.Run("relay", func(t *testing.T) {
				for i := 0; i < 2; i++ {
					resp, err := http.Post(base+"/relay/127.0.0.1:"+upstreamPort+"/up?y=2", "text/plain", strings.NewReader("relayed "+strconv.Itoa(i)))
					require.NoError(t, err)
					b, err := io.ReadAll(resp.Body)
					_ = resp.Body.Close()
					require.NoError(t, err)
					assert.Equal(t, http.StatusOK, resp.StatusCode)
					assert.True(t, strings.HasPrefix(string(b), "POST http://127.0.0.1:"+upstreamPort+"/up?y=2\n"), string(b))
					assert.True(t, strings.HasSuffix(string(b), "\nrelayed "+strconv.Itoa(i)), string(b))
				}
				assert.Equal(t, 1, cl.Pool().EndpointStats(connector.Endpoint{Host: "127.0.0.1", Port: mustAtoi(t, upstreamPort)}).Open)
			})
			t.Run("bad gateway", func(t *testing.T) {
				ln, err := net.Listen("tcp", "127.0.0.1:0")
				require.NoError(t, err)
				addr := ln.Addr().String()
				require.NoError(t, ln.Close())
				resp, err := http.Get(base + "/relay/" + addr + "/")
				require.NoError(t, err)
				_ = resp.Body.Close()
				assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
			})
			t.Run("bad target", func(t *testing.T) {
				resp, err := http.Get(base + "/relay/nowhere/")
				require.NoError(t, err)
				_ = resp.Body.Close()
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})
		})
	}
}

func TestMux_RelayRetriesCheckout(t *testing.T) {
	upstream := startServer(t, server.Config{Type: connector.TypeSocket}, newMux(nil))
	cl := client.New(client.Config{Pool: pool.Config{MaxPerEndpoint: 1}})
	require.NoError(t, cl.Start())
	t.Cleanup(func() { _ = cl.Stop() })
	m := newMux(cl)
	flaky := &flakyObtainer{Obtainer: cl, fails: 2}
	m.r.Obtainer = flaky
	front := startServer(t, server.Config{Type: connector.TypeSocket}, m)

	resp, err := http.Get("http://" + front.Addr().String() + "/relay/" + upstream.Addr().String() + "/again")
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(string(b), "GET http://"+upstream.Addr().String()+"/again\n"), string(b))
	assert.Equal(t, int32(3), atomic.LoadInt32(&flaky.calls))
}

// flakyObtainer fails its first few checkouts as if the pool were
// exhausted.
type flakyObtainer struct {
	client.Obtainer
	fails int32
	calls int32
}

func (o *flakyObtainer) ObtainCall(ctx context.Context, ep connector.Endpoint) (connector.ClientCall, error) {
	if atomic.AddInt32(&o.calls, 1) <= o.fails {
		return nil, connector.ErrPoolExhausted
	}
	return o.Obtainer.ObtainCall(ctx, ep)
}

func startServer(t *testing.T, cfg server.Config, d connector.Dispatcher) *server.Helper {
	t.Helper()
	cfg.Address = "127.0.0.1"
	h := server.New(cfg, d)
	require.NoError(t, h.Start())
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}
