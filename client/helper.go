// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/getlantern/golog"
	"github.com/gogama/connector"
	"github.com/gogama/connector/pool"
)

var log = golog.LoggerFor("connector/client")

var (
	errForeignCall = errors.New("connector/client: call not obtained from this helper")
	errPeerClosed  = errors.New("connector/client: connection closed by peer")
)

// Config configures a client Helper. The zero value is a valid
// configuration.
type Config struct {
	// Pool configures the connection pool built on each start.
	Pool pool.Config
	// Handlers receives helper lifecycle events. If Pool.Handlers is
	// nil, the pool's connection events go to Handlers as well.
	Handlers *connector.HandlerGroup
}

// A Helper is the client connector helper for HTTP and HTTPS. It owns
// a connection pool for as long as it is started.
//
// A Helper is safe for concurrent use by multiple goroutines. The
// calls it hands out are not: each belongs to one goroutine until it
// is released.
type Helper struct {
	cfg  Config
	lc   connector.Lifecycle
	pool atomic.Pointer[pool.Pool]
}

// New constructs a stopped Helper.
func New(cfg Config) *Helper {
	if cfg.Pool.Handlers == nil {
		cfg.Pool.Handlers = cfg.Handlers
	}
	return &Helper{cfg: cfg}
}

// Protocols returns HTTP and HTTPS.
func (h *Helper) Protocols() []connector.Protocol {
	return []connector.Protocol{connector.HTTP, connector.HTTPS}
}

// Start builds a fresh connection pool. No connections are opened.
// Starting a started Helper does nothing.
func (h *Helper) Start() error {
	return h.lc.Start(func() error {
		log.Debugf("Starting the default HTTP client")
		h.cfg.Handlers.Run(connector.BeforeStart, &connector.Info{Helper: h})
		h.pool.Store(pool.New(h.cfg.Pool))
		h.cfg.Handlers.Run(connector.AfterStart, &connector.Info{Helper: h})
		return nil
	})
}

// Stop closes the pool with every connection in it. Checkouts waiting
// on the pool fail with connector.ErrPoolClosed and later calls to
// ObtainCall fail with connector.ErrNotStarted. Stopping a stopped
// Helper does nothing.
func (h *Helper) Stop() error {
	return h.lc.Stop(func() error {
		log.Debugf("Stopping the default HTTP client")
		h.cfg.Handlers.Run(connector.BeforeStop, &connector.Info{Helper: h})
		err := h.pool.Swap(nil).Close()
		h.cfg.Handlers.Run(connector.AfterStop, &connector.Info{Helper: h, Err: err})
		return err
	})
}

// Started reports whether the Helper is started.
func (h *Helper) Started() bool {
	return h.lc.Started()
}

// Pool returns the current connection pool, or nil if the Helper is
// stopped.
func (h *Helper) Pool() *pool.Pool {
	return h.pool.Load()
}

// ObtainCall checks a connection to ep out of the pool and wraps it in
// a new call. The call holds the connection until it is passed to
// Release.
//
// ObtainCall returns connector.ErrNotStarted if the Helper is stopped,
// and otherwise any error from pool.Pool.Checkout.
func (h *Helper) ObtainCall(ctx context.Context, ep connector.Endpoint) (connector.ClientCall, error) {
	p := h.pool.Load()
	if p == nil {
		return nil, connector.ErrNotStarted
	}
	conn, err := p.Checkout(ctx, ep)
	if err != nil {
		return nil, err
	}
	return newCall(h, p, conn), nil
}

// Release ends a call obtained from this Helper and gives back its
// connection. The connection is returned to the pool for reuse if the
// exchange completed cleanly, and discarded otherwise.
//
// After Release, every accessor of the call which touches headers or
// bodies fails with connector.ErrCallClosed. Releasing a call twice
// returns connector.ErrCallClosed.
func (h *Helper) Release(call connector.ClientCall) error {
	c, ok := call.(*Call)
	if !ok || c.h != h {
		return errForeignCall
	}
	if c.phase == phaseClosed {
		return connector.ErrCallClosed
	}
	cause := c.reuseBlocker()
	if cause == nil {
		switch c.conn.Poll() {
		case pool.DataAvailable:
			cause = &connector.DesyncError{Op: "Release", Reason: "unexpected input after response"}
		case pool.PeerClosed:
			cause = errPeerClosed
		}
	}
	c.phase = phaseClosed
	if cause == nil {
		return c.pool.Release(c.conn)
	}
	return c.pool.Discard(c.conn, cause)
}
