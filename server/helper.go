// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/getlantern/golog"
	"github.com/gogama/connector"
)

var log = golog.LoggerFor("connector/server")

// DefaultReadHeaderTimeout bounds the wait for a request head when
// Config.ReadHeaderTimeout is zero.
const DefaultReadHeaderTimeout = 30 * time.Second

// Config configures a server Helper. The zero value serves plain HTTP
// on an ephemeral port of every interface with the select connector.
type Config struct {
	// Address is the host or IP address to bind. Empty binds every
	// interface.
	Address string
	// Port is the TCP port to bind. Zero picks an ephemeral port; see
	// Helper.Addr.
	Port int
	// Type selects the connector implementation.
	Type connector.Type
	// TLSConfig, if not nil, makes the Helper serve HTTPS. It must hold
	// at least one certificate.
	TLSConfig *tls.Config
	// MaxConnections caps the number of simultaneously open
	// connections. Zero means no cap.
	MaxConnections int
	// ReusePort sets SO_REUSEPORT on the listening socket so several
	// helpers can share a port. It is only supported on Linux.
	ReusePort bool
	// ReadHeaderTimeout bounds the wait for each request head, idle
	// time between requests included. If zero,
	// DefaultReadHeaderTimeout is used. Negative means no bound.
	ReadHeaderTimeout time.Duration
	// Handlers receives helper lifecycle events.
	Handlers *connector.HandlerGroup
}

func (cfg Config) readHeaderTimeout() time.Duration {
	if cfg.ReadHeaderTimeout == 0 {
		return DefaultReadHeaderTimeout
	}
	return cfg.ReadHeaderTimeout
}

// A Helper is the server connector helper. It owns its listener
// exclusively from Start to Stop.
//
// A Helper is safe for concurrent use by multiple goroutines.
type Helper struct {
	cfg Config
	d   connector.Dispatcher
	lc  connector.Lifecycle

	mu      sync.Mutex
	ln      net.Listener
	srv     *http.Server
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// New constructs a stopped Helper which dispatches inbound calls to d.
func New(cfg Config, d connector.Dispatcher) *Helper {
	if d == nil {
		panic("connector/server: nil dispatcher")
	}
	return &Helper{cfg: cfg, d: d}
}

// Protocols returns HTTPS if the Helper has a TLS configuration and
// HTTP otherwise.
func (h *Helper) Protocols() []connector.Protocol {
	if h.cfg.TLSConfig != nil {
		return []connector.Protocol{connector.HTTPS}
	}
	return []connector.Protocol{connector.HTTP}
}

// Type returns the connector type.
func (h *Helper) Type() connector.Type {
	return h.cfg.Type
}

// Start binds the listener and starts serving. A bind failure is
// returned and leaves the Helper stopped. Starting a started Helper
// does nothing.
func (h *Helper) Start() error {
	return h.lc.Start(func() error {
		h.cfg.Handlers.Run(connector.BeforeStart, &connector.Info{Helper: h})
		err := h.start()
		h.cfg.Handlers.Run(connector.AfterStart, &connector.Info{Helper: h, Err: err})
		return err
	})
}

func (h *Helper) start() error {
	ln, err := h.listen()
	if err != nil {
		log.Errorf("Unable to bind %s server: %v", h.Protocols()[0], err)
		return err
	}
	log.Debugf("Starting the %s server on %v (%v connector)", h.Protocols()[0], ln.Addr(), h.cfg.Type)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.ln = ln
	h.closing = false
	h.wg.Add(1)
	switch h.cfg.Type {
	case connector.TypeSelect:
		timeout := h.cfg.readHeaderTimeout()
		if timeout < 0 {
			timeout = 0
		}
		h.srv = &http.Server{
			Handler:           http.HandlerFunc(h.serveHTTP),
			ReadHeaderTimeout: timeout,
			IdleTimeout:       timeout,
			TLSNextProto:      map[string]func(*http.Server, *tls.Conn, http.Handler){},
		}
		go h.serveSelect(h.srv, ln)
	default:
		h.conns = make(map[net.Conn]struct{})
		go h.serveSockets(ln)
	}
	return nil
}

// Stop closes the listener and every open connection, then waits for
// running dispatches to return. Stopping a stopped Helper does
// nothing.
func (h *Helper) Stop() error {
	return h.lc.Stop(func() error {
		h.cfg.Handlers.Run(connector.BeforeStop, &connector.Info{Helper: h})
		err := h.stop()
		h.cfg.Handlers.Run(connector.AfterStop, &connector.Info{Helper: h, Err: err})
		return err
	})
}

// stop closes the serving resources. On failure they are kept, so a
// later Stop can retry; a listener already closed by the failed attempt
// does not fail the retry.
func (h *Helper) stop() error {
	h.mu.Lock()
	h.closing = true
	ln, srv := h.ln, h.srv
	conns := make([]net.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	if ln == nil {
		return nil
	}
	log.Debugf("Stopping the %s server on %v", h.Protocols()[0], ln.Addr())

	var err error
	if srv != nil {
		err = srv.Close()
	} else {
		err = ln.Close()
		for _, c := range conns {
			_ = c.Close()
		}
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	h.wg.Wait()
	if err != nil {
		log.Errorf("Unable to stop the %s server on %v: %v", h.Protocols()[0], ln.Addr(), err)
		return err
	}

	h.mu.Lock()
	h.ln, h.srv, h.conns = nil, nil, nil
	h.mu.Unlock()
	return nil
}

// Started reports whether the Helper is started.
func (h *Helper) Started() bool {
	return h.lc.Started()
}

// Addr returns the bound listener address, or nil if the Helper is
// stopped.
func (h *Helper) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

// enter registers a running dispatch. It returns false once the Helper
// is stopping.
func (h *Helper) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	return true
}
