// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getlantern/golog"
	"github.com/gogama/connector"
)

var log = golog.LoggerFor("connector/pool")

const (
	// DefaultMaxPerEndpoint is the per-endpoint connection limit used
	// when Config.MaxPerEndpoint is zero.
	DefaultMaxPerEndpoint = 8
	// DefaultIdleTimeout is the keep-alive window used when
	// Config.IdleTimeout is zero.
	DefaultIdleTimeout = 90 * time.Second
	// DefaultCheckoutTimeout is the checkout wait bound used when
	// Config.CheckoutTimeout is zero.
	DefaultCheckoutTimeout = 30 * time.Second
)

// Config holds the tunables of a Pool. Its zero value is a valid
// configuration which dials with a zero NetDialer.
type Config struct {
	// MaxPerEndpoint caps the number of open connections per endpoint,
	// counting idle, acquired and in-progress dials. If zero,
	// DefaultMaxPerEndpoint is used.
	MaxPerEndpoint int
	// IdleTimeout is the keep-alive window. A connection idle for
	// longer is closed instead of reused. If zero, DefaultIdleTimeout
	// is used.
	IdleTimeout time.Duration
	// CheckoutTimeout bounds how long Checkout waits for a connection
	// when the endpoint is at its limit. If zero,
	// DefaultCheckoutTimeout is used.
	CheckoutTimeout time.Duration
	// SweepInterval is the period of the background idle sweep. If
	// zero, half the idle timeout is used. If negative, no background
	// sweep runs and eviction happens only on checkout and Sweep.
	SweepInterval time.Duration
	// Dialer opens new connections. If nil, a zero NetDialer is used.
	Dialer Dialer
	// Handlers receives connection events. It may be nil.
	Handlers *connector.HandlerGroup
}

func (cfg Config) withDefaults() Config {
	if cfg.MaxPerEndpoint <= 0 {
		cfg.MaxPerEndpoint = DefaultMaxPerEndpoint
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.CheckoutTimeout <= 0 {
		cfg.CheckoutTimeout = DefaultCheckoutTimeout
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = cfg.IdleTimeout / 2
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &NetDialer{}
	}
	return cfg
}

// A Pool is a set of reusable connections keyed by endpoint.
//
// A Pool is safe for concurrent use by multiple goroutines. One lock
// guards the whole index, so concurrent checkouts can never open more
// connections to an endpoint than the configured maximum.
type Pool struct {
	cfg    Config
	nextID uint64

	mu      sync.Mutex
	buckets map[connector.Endpoint]*bucket
	closed  bool
	done    chan struct{}
	sweeper sync.WaitGroup
}

type bucket struct {
	idle    []*Conn
	conns   map[*Conn]struct{}
	dialing int
	waiters []chan grant
}

// A grant is what a waiting checkout is woken with: either a released
// conn handed over directly or a reserved dial slot.
type grant struct {
	c    *Conn
	dial bool
}

func (b *bucket) open() int {
	return len(b.conns) + b.dialing
}

func (b *bucket) empty() bool {
	return b.open() == 0 && len(b.waiters) == 0
}

// New constructs a Pool and starts its background sweeper.
func New(cfg Config) *Pool {
	p := &Pool{
		cfg:     cfg.withDefaults(),
		buckets: make(map[connector.Endpoint]*bucket),
		done:    make(chan struct{}),
	}
	if p.cfg.SweepInterval > 0 {
		p.sweeper.Add(1)
		go p.sweep()
	}
	return p
}

// Config returns the effective configuration, with defaults applied.
func (p *Pool) Config() Config {
	return p.cfg
}

// Checkout returns a connection to ep for the exclusive use of the
// caller.
//
// The most recently released idle connection to ep is reused if it is
// still healthy. Otherwise a new connection is dialed if ep is below
// its limit. Otherwise Checkout waits until a connection to ep is
// released or discarded. Waiters are served in arrival order, and a
// connection released while checkouts are waiting goes straight to the
// longest waiting one. It returns connector.ErrPoolExhausted if the
// wait exceeds the checkout timeout, ctx.Err() if ctx ends first, and
// connector.ErrPoolClosed if the pool is closed.
func (p *Pool) Checkout(ctx context.Context, ep connector.Endpoint) (*Conn, error) {
	var expired <-chan time.Time
	for {
		c, wait, dial, err := p.next(ep)
		if err != nil {
			return nil, err
		}
		if c != nil {
			if p.healthy(c, time.Now()) {
				p.fire(connector.AfterCheckout, &connector.Info{Endpoint: ep, ConnID: c.id, Reused: true})
				return c, nil
			}
			p.evict(c)
			continue
		}
		if dial {
			return p.dial(ctx, ep)
		}
		if expired == nil {
			timer := time.NewTimer(p.cfg.CheckoutTimeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case g := <-wait:
			if g.dial {
				return p.dial(ctx, ep)
			}
			if g.c.State() != Acquired {
				continue
			}
			if p.healthy(g.c, time.Now()) {
				p.fire(connector.AfterCheckout, &connector.Info{Endpoint: ep, ConnID: g.c.id, Reused: true})
				return g.c, nil
			}
			p.evict(g.c)
		case <-expired:
			p.abandon(ep, wait)
			return nil, connector.ErrPoolExhausted
		case <-ctx.Done():
			p.abandon(ep, wait)
			return nil, ctx.Err()
		case <-p.done:
			return nil, connector.ErrPoolClosed
		}
	}
}

// next takes the next step of a checkout under the pool lock: pop an
// idle conn, reserve a dial slot, or enqueue a waiter.
func (p *Pool) next(ep connector.Endpoint) (c *Conn, wait chan grant, dial bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, false, connector.ErrPoolClosed
	}
	b := p.buckets[ep]
	if b == nil {
		b = &bucket{conns: make(map[*Conn]struct{})}
		p.buckets[ep] = b
	}
	if n := len(b.idle); n > 0 {
		c = b.idle[n-1]
		b.idle[n-1] = nil
		b.idle = b.idle[:n-1]
		c.setState(Acquired)
		c.uses++
		return c, nil, false, nil
	}
	if b.open() < p.cfg.MaxPerEndpoint {
		b.dialing++
		return nil, nil, true, nil
	}
	wait = make(chan grant, 1)
	b.waiters = append(b.waiters, wait)
	return nil, wait, false, nil
}

func (p *Pool) healthy(c *Conn, now time.Time) bool {
	if now.Sub(c.lastUsed) > p.cfg.IdleTimeout {
		return false
	}
	return c.Poll() == WouldBlock
}

func (p *Pool) dial(ctx context.Context, ep connector.Endpoint) (*Conn, error) {
	nc, err := p.cfg.Dialer.Dial(ctx, ep)

	p.mu.Lock()
	b := p.buckets[ep]
	closed := p.closed
	if b != nil {
		b.dialing--
	}
	if err != nil || closed {
		if b != nil {
			p.grantSlotLocked(ep, b)
		}
		p.mu.Unlock()
		if err == nil {
			_ = nc.Close()
			return nil, connector.ErrPoolClosed
		}
		log.Debugf("Dial %v failed: %v", ep, err)
		var dialErr *connector.DialError
		if !errors.As(err, &dialErr) {
			err = &connector.DialError{Endpoint: ep, Err: err}
		}
		p.fire(connector.AfterDial, &connector.Info{Endpoint: ep, Err: err})
		return nil, err
	}
	c := newConn(atomic.AddUint64(&p.nextID, 1), ep, nc, time.Now())
	c.uses = 1
	b.conns[c] = struct{}{}
	p.mu.Unlock()

	log.Debugf("Dialed %v as conn %d", ep, c.id)
	p.fire(connector.AfterDial, &connector.Info{Endpoint: ep, ConnID: c.id})
	p.fire(connector.AfterCheckout, &connector.Info{Endpoint: ep, ConnID: c.id})
	return c, nil
}

// abandon removes a waiter which gave up. If the waiter was granted a
// conn or a dial slot in the meantime, the grant is passed on.
func (p *Pool) abandon(ep connector.Endpoint, wait chan grant) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.buckets[ep]
	if b == nil {
		return
	}
	for i, w := range b.waiters {
		if w == wait {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			p.tidyLocked(ep, b)
			return
		}
	}
	select {
	case g := <-wait:
		if g.dial {
			b.dialing--
			p.grantSlotLocked(ep, b)
		} else {
			g.c.uses--
			p.idleLocked(b, g.c)
			p.tidyLocked(ep, b)
		}
	default:
	}
}

func (b *bucket) popWaiter() chan grant {
	if len(b.waiters) == 0 {
		return nil
	}
	w := b.waiters[0]
	b.waiters[0] = nil
	b.waiters = b.waiters[1:]
	return w
}

// idleLocked hands c to the longest waiting checkout for its endpoint,
// or parks it in the idle set if nobody waits. It reports whether c was
// handed over.
func (p *Pool) idleLocked(b *bucket, c *Conn) bool {
	if w := b.popWaiter(); w != nil {
		c.uses++
		w <- grant{c: c}
		return true
	}
	c.setState(Idle)
	b.idle = append(b.idle, c)
	return false
}

// grantSlotLocked gives a freed slot for ep to the longest waiting
// checkout, if any, by reserving a dial on its behalf.
func (p *Pool) grantSlotLocked(ep connector.Endpoint, b *bucket) {
	if w := b.popWaiter(); w != nil {
		b.dialing++
		w <- grant{dial: true}
	}
	p.tidyLocked(ep, b)
}

func (p *Pool) tidyLocked(ep connector.Endpoint, b *bucket) {
	if b.empty() {
		delete(p.buckets, ep)
	}
}

// Release returns a connection after a clean exchange. If a checkout
// for the same endpoint is waiting, the connection is handed to it
// directly. Otherwise it becomes Idle and is eligible for reuse by a
// later checkout.
//
// A connection with unread input is closed instead, since reusing it
// would pair that input with the wrong exchange. Release returns
// connector.ErrNotAcquired if c is not held, except after the pool was
// closed, when releasing is a no-op.
func (p *Pool) Release(c *Conn) error {
	if c.r.Buffered() > 0 {
		return p.Discard(c, &connector.DesyncError{Op: "Release", Reason: "unread input on connection"})
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	b := p.buckets[c.ep]
	if c.State() != Acquired || b == nil {
		p.mu.Unlock()
		return connector.ErrNotAcquired
	}
	if _, ok := b.conns[c]; !ok {
		p.mu.Unlock()
		return connector.ErrNotAcquired
	}
	c.lastUsed = time.Now()
	handed := p.idleLocked(b, c)
	p.mu.Unlock()

	if handed {
		log.Debugf("Handed conn %d to waiting checkout for %v", c.id, c.ep)
	}
	p.fire(connector.AfterRelease, &connector.Info{Endpoint: c.ep, ConnID: c.id})
	return nil
}

// Discard closes a connection after a failed exchange, a protocol
// desynchronization or a peer-initiated close, and frees its slot. The
// connection is never handed out again. The cause, which may be nil, is
// reported to AfterDiscard handlers.
//
// Discard returns connector.ErrNotAcquired if c is not held, except
// after the pool was closed, when discarding is a no-op.
func (p *Pool) Discard(c *Conn, cause error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	b := p.buckets[c.ep]
	if c.State() != Acquired || b == nil {
		p.mu.Unlock()
		return connector.ErrNotAcquired
	}
	if _, ok := b.conns[c]; !ok {
		p.mu.Unlock()
		return connector.ErrNotAcquired
	}
	c.setState(Closing)
	delete(b.conns, c)
	p.grantSlotLocked(c.ep, b)
	p.mu.Unlock()

	_ = c.netConn.Close()
	c.setState(Closed)
	log.Debugf("Discarded conn %d to %v: %v", c.id, c.ep, cause)
	p.fire(connector.AfterDiscard, &connector.Info{Endpoint: c.ep, ConnID: c.id, Err: cause})
	return nil
}

// evict closes a conn popped from the idle set which turned out to be
// expired or stale.
func (p *Pool) evict(c *Conn) {
	p.mu.Lock()
	c.setState(Closing)
	if b := p.buckets[c.ep]; b != nil {
		delete(b.conns, c)
		p.grantSlotLocked(c.ep, b)
	}
	p.mu.Unlock()

	_ = c.netConn.Close()
	c.setState(Closed)
	log.Debugf("Evicted stale conn %d to %v", c.id, c.ep)
	p.fire(connector.AfterEvict, &connector.Info{Endpoint: c.ep, ConnID: c.id})
}

// Sweep closes every idle connection which has been idle for longer
// than the idle timeout as of now, and returns how many it closed.
func (p *Pool) Sweep(now time.Time) int {
	var evicted []*Conn
	p.mu.Lock()
	for ep, b := range p.buckets {
		keep := b.idle[:0]
		freed := 0
		for _, c := range b.idle {
			if now.Sub(c.lastUsed) > p.cfg.IdleTimeout {
				c.setState(Closing)
				delete(b.conns, c)
				evicted = append(evicted, c)
				freed++
			} else {
				keep = append(keep, c)
			}
		}
		for i := len(keep); i < len(b.idle); i++ {
			b.idle[i] = nil
		}
		b.idle = keep
		for i := 0; i < freed && len(b.waiters) > 0; i++ {
			p.grantSlotLocked(ep, b)
		}
		p.tidyLocked(ep, b)
	}
	p.mu.Unlock()

	for _, c := range evicted {
		_ = c.netConn.Close()
		c.setState(Closed)
		p.fire(connector.AfterEvict, &connector.Info{Endpoint: c.ep, ConnID: c.id})
	}
	if len(evicted) > 0 {
		log.Debugf("Swept %d idle connections", len(evicted))
	}
	return len(evicted)
}

func (p *Pool) sweep() {
	defer p.sweeper.Done()
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			p.Sweep(now)
		case <-p.done:
			return
		}
	}
}

// Close closes the pool. Waiting and future checkouts fail with
// connector.ErrPoolClosed, and every connection, idle or acquired, is
// closed. Closing a closed pool does nothing.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	var all []*Conn
	for _, b := range p.buckets {
		for c := range b.conns {
			c.setState(Closing)
			all = append(all, c)
		}
	}
	p.buckets = make(map[connector.Endpoint]*bucket)
	p.mu.Unlock()

	p.sweeper.Wait()
	for _, c := range all {
		_ = c.netConn.Close()
		c.setState(Closed)
		p.fire(connector.AfterEvict, &connector.Info{Endpoint: c.ep, ConnID: c.id, Err: connector.ErrPoolClosed})
	}
	log.Debugf("Closed pool with %d connections", len(all))
	return nil
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	// Endpoints is the number of endpoints with open connections or
	// waiters.
	Endpoints int
	// Open counts idle, acquired and dialing connections.
	Open int
	// Idle counts connections ready for reuse.
	Idle int
	// Acquired counts connections held by callers.
	Acquired int
	// Dialing counts dials in progress.
	Dialing int
	// Waiting counts checkouts waiting for a connection.
	Waiting int
}

// Stats returns a snapshot across every endpoint.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s Stats
	for _, b := range p.buckets {
		s.add(b)
	}
	s.Endpoints = len(p.buckets)
	return s
}

// EndpointStats returns a snapshot for one endpoint.
func (p *Pool) EndpointStats(ep connector.Endpoint) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s Stats
	if b := p.buckets[ep]; b != nil {
		s.add(b)
		s.Endpoints = 1
	}
	return s
}

func (s *Stats) add(b *bucket) {
	s.Open += b.open()
	s.Idle += len(b.idle)
	s.Acquired += len(b.conns) - len(b.idle)
	s.Dialing += b.dialing
	s.Waiting += len(b.waiters)
}

func (p *Pool) fire(evt connector.Event, info *connector.Info) {
	p.cfg.Handlers.Run(evt, info)
}
