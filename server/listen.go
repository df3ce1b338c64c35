// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"

	"golang.org/x/net/netutil"
)

// listen binds the configured address. The listener is capped at
// MaxConnections open connections and wrapped for TLS if configured.
func (h *Helper) listen() (net.Listener, error) {
	var lc net.ListenConfig
	if h.cfg.ReusePort {
		lc.Control = reusePort
	}
	addr := net.JoinHostPort(h.cfg.Address, strconv.Itoa(h.cfg.Port))
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, err
	}
	if h.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, h.cfg.MaxConnections)
	}
	if h.cfg.TLSConfig != nil {
		cfg := h.cfg.TLSConfig.Clone()
		if len(cfg.NextProtos) == 0 {
			cfg.NextProtos = []string{"http/1.1"}
		}
		ln = tls.NewListener(ln, cfg)
	}
	return ln, nil
}
