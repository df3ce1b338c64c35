// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"crypto/tls"
	"errors"
	"net"
	"os"
	"time"
)

// Readiness is the result of polling a connection for input.
type Readiness int

const (
	// WouldBlock means no input is pending and the peer has not closed
	// the connection. It is the only healthy state for an idle
	// connection.
	WouldBlock Readiness = iota
	// DataAvailable means input is pending.
	DataAvailable
	// PeerClosed means the peer closed the connection or the connection
	// failed.
	PeerClosed
)

var readinessNames = []string{
	"WouldBlock",
	"DataAvailable",
	"PeerClosed",
}

// String returns the name of the readiness.
func (r Readiness) String() string {
	return readinessNames[int(r)]
}

// pollWait bounds the read done by Poll on transports which cannot be
// peeked without blocking.
const pollWait = time.Millisecond

// Poll reports whether input is pending on the connection without
// consuming it.
//
// Plain sockets are peeked with a non-blocking system call where the
// platform supports it. Other transports, including TLS, are probed
// with a read bounded by a very short deadline. Any input read by the
// probe stays in the Conn's Reader.
//
// Poll must only be called by the holder of the connection, or by the
// pool while the connection is not held.
func (c *Conn) Poll() Readiness {
	if c.r.Buffered() > 0 {
		return DataAvailable
	}
	if _, ok := c.netConn.(*tls.Conn); !ok {
		if r, ok := peekSocket(c.netConn); ok {
			return r
		}
	}
	if err := c.netConn.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return PeerClosed
	}
	_, err := c.r.Peek(1)
	if resetErr := c.netConn.SetReadDeadline(time.Time{}); resetErr != nil {
		return PeerClosed
	}
	switch {
	case err == nil:
		return DataAvailable
	case isTimeout(err):
		return WouldBlock
	default:
		return PeerClosed
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
