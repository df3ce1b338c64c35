// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/gogama/connector"
)

// A Dialer opens new transport channels for the pool.
//
// Implementations must be safe for concurrent use by multiple
// goroutines. Dial must honor ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context, ep connector.Endpoint) (net.Conn, error)
}

// The DialerFunc type is an adapter to allow the use of ordinary
// functions as dialers.
type DialerFunc func(ctx context.Context, ep connector.Endpoint) (net.Conn, error)

// Dial calls f(ctx, ep).
func (f DialerFunc) Dial(ctx context.Context, ep connector.Endpoint) (net.Conn, error) {
	return f(ctx, ep)
}

// DefaultDialTimeout is the connect timeout NetDialer uses when its
// Timeout is zero.
const DefaultDialTimeout = 10 * time.Second

// A NetDialer dials TCP connections, and completes a TLS client
// handshake for confidential endpoints. Its zero value is ready to use.
type NetDialer struct {
	// Timeout bounds the TCP connect and the TLS handshake together.
	// If zero, DefaultDialTimeout is used.
	Timeout time.Duration
	// KeepAlive is the TCP keep-alive period. Zero selects the net
	// package default and a negative value disables keep-alives.
	KeepAlive time.Duration
	// TLSConfig is the base TLS configuration for confidential
	// endpoints. If ServerName is empty it is set to the endpoint host,
	// and if NextProtos is empty it is set to http/1.1.
	TLSConfig *tls.Config
}

// Dial opens a connection to ep.
func (d *NetDialer) Dial(ctx context.Context, ep connector.Endpoint) (net.Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nd := net.Dialer{KeepAlive: d.KeepAlive}
	addr := ep.Address()
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := nc.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	if !ep.Confidential {
		return nc, nil
	}

	tlsConn := tls.Client(nc, d.tlsConfig(addr))
	if err = tlsConn.HandshakeContext(ctx); err != nil {
		_ = nc.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (d *NetDialer) tlsConfig(addr string) *tls.Config {
	var cfg *tls.Config
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			cfg.ServerName = host
		}
	}
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{"http/1.1"}
	}
	return cfg
}
