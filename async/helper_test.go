// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package async

import (
	"errors"
	"io"
	"testing"

	"github.com/gogama/connector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	d := connector.DispatcherFunc(func(connector.ServerCall) {})
	assert.PanicsWithValue(t, "connector/async: nil engine", func() {
		New(Config{}, nil, d)
	})
	assert.PanicsWithValue(t, "connector/async: nil dispatcher", func() {
		New(Config{}, &mockEngine{}, nil)
	})
	assert.Equal(t, []connector.Protocol{connector.HTTP}, New(Config{}, &mockEngine{}, d).Protocols())
	assert.Equal(t, []connector.Protocol{connector.HTTPS}, New(Config{Confidential: true}, &mockEngine{}, d).Protocols())
}

func TestHelper(t *testing.T) {
	t.Run("lifecycle", func(t *testing.T) {
		var evts []connector.Event
		handlers := &connector.HandlerGroup{}
		for _, evt := range []connector.Event{connector.BeforeStart, connector.AfterStart, connector.BeforeStop, connector.AfterStop} {
			handlers.PushBack(evt, connector.HandlerFunc(func(evt connector.Event, _ *connector.Info) {
				evts = append(evts, evt)
			}))
		}
		e := &mockEngine{}
		e.Test(t)
		e.On("Serve", mock.Anything).Return(nil).Once()
		e.On("Shutdown").Return(nil).Once()
		h := New(Config{Handlers: handlers}, e, connector.DispatcherFunc(func(connector.ServerCall) {}))

		require.NoError(t, h.Start())
		require.NoError(t, h.Start())
		assert.True(t, h.Started())
		require.NoError(t, h.Stop())
		require.NoError(t, h.Stop())
		assert.False(t, h.Started())
		e.AssertExpectations(t)
		assert.Equal(t, []connector.Event{connector.BeforeStart, connector.AfterStart, connector.BeforeStop, connector.AfterStop}, evts)
	})
	t.Run("start failure", func(t *testing.T) {
		bind := errors.New("address in use")
		e := &mockEngine{}
		e.Test(t)
		e.On("Serve", mock.Anything).Return(bind).Once()
		h := New(Config{}, e, connector.DispatcherFunc(func(connector.ServerCall) {}))
		assert.Same(t, bind, h.Start())
		assert.False(t, h.Started())
		e.AssertExpectations(t)
	})
	t.Run("dispatch", func(t *testing.T) {
		var served Handler
		e := &mockEngine{}
		e.Test(t)
		e.On("Serve", mock.Anything).Run(func(args mock.Arguments) {
			served = args.Get(0).(Handler)
		}).Return(nil)
		var call connector.ServerCall
		h := New(Config{Confidential: true, Address: "192.0.2.10"}, e, connector.DispatcherFunc(func(c connector.ServerCall) {
			call = c
			assert.Equal(t, "https://api.example/v1", c.RequestURI())
			assert.Equal(t, "192.0.2.10", c.ResponseAddress())
			r, _ := c.RequestBody()
			b, _ := io.ReadAll(r)
			c.SetResponseStatus(202, "Accepted")
			rh, _ := c.ResponseHeaders()
			rh.Set("X-Echo", string(b))
		}))
		require.NoError(t, h.Start())
		require.NotNil(t, served)

		resp := newFakeResponse("Server", "engine")
		served.Serve(newFakeRequest("POST", "/v1", "ping", "Host", "api.example"), resp)
		assert.Equal(t, 202, resp.code)
		assert.Equal(t, []string{"Server", "X-Echo"}, resp.headers.names)
		assert.Equal(t, []string{"engine", "ping"}, resp.headers.values)
		_, err := call.ResponseHeaders()
		assert.Same(t, connector.ErrCallClosed, err)
	})
	t.Run("invalid response headers", func(t *testing.T) {
		var served Handler
		e := &mockEngine{}
		e.Test(t)
		e.On("Serve", mock.Anything).Run(func(args mock.Arguments) {
			served = args.Get(0).(Handler)
		}).Return(nil)
		h := New(Config{}, e, connector.DispatcherFunc(func(c connector.ServerCall) {
			rh, _ := c.ResponseHeaders()
			rh.Add("Bad Name", "x")
		}))
		require.NoError(t, h.Start())

		resp := newFakeResponse("Server", "engine")
		served.Serve(newFakeRequest("GET", "/", ""), resp)
		assert.Equal(t, 500, resp.code)
		assert.Empty(t, resp.headers.names)
	})
}
