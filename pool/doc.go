// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package pool keeps per-endpoint sets of reusable client connections.

A Pool hands out connections with Checkout and takes them back with
Release after a clean exchange, or Discard after a failed one:

	p := pool.New(pool.Config{
		MaxPerEndpoint:  2,
		IdleTimeout:     30 * time.Second,
		CheckoutTimeout: time.Second,
		Dialer:          &pool.NetDialer{Timeout: 5 * time.Second},
	})
	defer p.Close()

	ep := connector.Endpoint{Host: "api.example.com", Port: 443, Confidential: true}
	c, err := p.Checkout(ctx, ep)
	if err != nil {
		return err
	}
	if err = exchange(c.Reader(), c.Writer()); err != nil {
		return p.Discard(c, err)
	}
	return p.Release(c)

Every Conn moves through the states Idle, Acquired, Closing and Closed.
A Conn is Acquired by exactly one caller at a time, and the pool never
hands out a Closing or Closed conn. Idle conns that expired or went
stale are closed instead of being reused, and a background sweeper
evicts idle conns on its own schedule.

When every connection to an endpoint is in use, Checkout waits for one
to be released. If none is released within the checkout timeout it
fails with connector.ErrPoolExhausted; if the pool is closed meanwhile
it fails with connector.ErrPoolClosed.
*/
package pool
