// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package async

import (
	"github.com/getlantern/golog"
	"github.com/gogama/connector"
)

var log = golog.LoggerFor("connector/async")

// Config configures a Helper.
type Config struct {
	// Confidential reports that the engine serves HTTPS.
	Confidential bool
	// Address is the server address reported by every call as its
	// response address.
	Address string
	// Handlers receives helper lifecycle events.
	Handlers *connector.HandlerGroup
}

// A Helper runs a server connector on an external Engine. Scheduling is
// entirely the engine's: the Helper only wraps each delivered exchange
// in a Call and dispatches it.
type Helper struct {
	cfg Config
	e   Engine
	d   connector.Dispatcher
	lc  connector.Lifecycle
}

// New constructs a stopped Helper over e which dispatches inbound calls
// to d.
func New(cfg Config, e Engine, d connector.Dispatcher) *Helper {
	if e == nil {
		panic("connector/async: nil engine")
	}
	if d == nil {
		panic("connector/async: nil dispatcher")
	}
	return &Helper{cfg: cfg, e: e, d: d}
}

func (h *Helper) Protocols() []connector.Protocol {
	if h.cfg.Confidential {
		return []connector.Protocol{connector.HTTPS}
	}
	return []connector.Protocol{connector.HTTP}
}

// Start starts the engine. Starting a started Helper does nothing.
func (h *Helper) Start() error {
	return h.lc.Start(func() error {
		h.cfg.Handlers.Run(connector.BeforeStart, &connector.Info{Helper: h})
		log.Debugf("Starting the external %s server", h.Protocols()[0])
		err := h.e.Serve(HandlerFunc(h.serve))
		if err != nil {
			log.Errorf("Unable to start the external %s server: %v", h.Protocols()[0], err)
		}
		h.cfg.Handlers.Run(connector.AfterStart, &connector.Info{Helper: h, Err: err})
		return err
	})
}

// Stop shuts the engine down. Stopping a stopped Helper does nothing.
func (h *Helper) Stop() error {
	return h.lc.Stop(func() error {
		h.cfg.Handlers.Run(connector.BeforeStop, &connector.Info{Helper: h})
		log.Debugf("Stopping the external %s server", h.Protocols()[0])
		err := h.e.Shutdown()
		h.cfg.Handlers.Run(connector.AfterStop, &connector.Info{Helper: h, Err: err})
		return err
	})
}

func (h *Helper) Started() bool {
	return h.lc.Started()
}

func (h *Helper) serve(req Request, resp Response) {
	c := NewCall(req, resp, h.cfg.Confidential, h.cfg.Address)
	h.d.Dispatch(c)
	if err := c.Close(); err != nil {
		log.Errorf("Unable to send response headers for %s %s: %v", req.Method(), req.URI(), err)
		resp.Headers().Dispose()
		resp.SetStatus(500, "Internal Server Error")
	}
}
