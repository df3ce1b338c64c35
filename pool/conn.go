// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"bufio"
	"net"
	"sync/atomic"
	"time"

	"github.com/gogama/connector"
)

// A State is the lifecycle state of a pooled connection.
type State int32

const (
	// Idle means the connection sits in the pool ready for reuse.
	Idle State = iota
	// Acquired means exactly one caller holds the connection.
	Acquired
	// Closing means the connection is being torn down and will never
	// be handed out again.
	Closing
	// Closed means the underlying transport channel is closed.
	Closed
)

var stateNames = []string{
	"Idle",
	"Acquired",
	"Closing",
	"Closed",
}

// String returns the name of the state.
func (s State) String() string {
	return stateNames[int(s)]
}

const bufferSize = 4096

// A Conn is one pooled transport channel bound to a single endpoint.
//
// The buffered Reader and Writer live as long as the Conn, so bytes
// buffered but not consumed by one exchange are still there for the
// next. The pool refuses to reuse a Conn with unconsumed input.
type Conn struct {
	id      uint64
	ep      connector.Endpoint
	netConn net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	state   atomic.Int32
	created time.Time

	// Guarded by the owning pool's lock while the Conn is Idle, and by
	// the holder while it is Acquired.
	lastUsed time.Time
	uses     int
}

func newConn(id uint64, ep connector.Endpoint, nc net.Conn, now time.Time) *Conn {
	c := &Conn{
		id:       id,
		ep:       ep,
		netConn:  nc,
		r:        bufio.NewReaderSize(nc, bufferSize),
		w:        bufio.NewWriterSize(nc, bufferSize),
		created:  now,
		lastUsed: now,
	}
	c.state.Store(int32(Acquired))
	return c
}

// ID returns the pool-assigned id of the connection. Ids are unique
// within one pool and never zero.
func (c *Conn) ID() uint64 {
	return c.id
}

// Endpoint returns the endpoint the connection is bound to.
func (c *Conn) Endpoint() connector.Endpoint {
	return c.ep
}

// NetConn returns the underlying transport channel.
func (c *Conn) NetConn() net.Conn {
	return c.netConn
}

// Reader returns the buffered reader over the connection.
func (c *Conn) Reader() *bufio.Reader {
	return c.r
}

// Writer returns the buffered writer over the connection.
func (c *Conn) Writer() *bufio.Writer {
	return c.w
}

// State returns the current lifecycle state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Created returns the time the connection was dialed.
func (c *Conn) Created() time.Time {
	return c.created
}

// LastUsed returns the time the connection was last released to the
// pool, or its creation time if it was never released.
func (c *Conn) LastUsed() time.Time {
	return c.lastUsed
}

// Uses returns the number of times the connection was checked out.
func (c *Conn) Uses() int {
	return c.uses
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.netConn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}
