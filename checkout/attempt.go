// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package checkout

import (
	"context"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/transient"
)

// An Attempt represents the state of one logical checkout: the series
// of pool checkouts made on behalf of a single ObtainCall until one
// succeeds or the retry policy gives up.
//
// Retry and timeout policies should treat the exported fields as
// read-only, and use SetValue and Value to keep their own state.
type Attempt struct {
	// Endpoint is the endpoint a call is being obtained for.
	Endpoint connector.Endpoint

	// Start is the time the logical checkout started. It is assigned a
	// non-zero value when the first checkout begins and does not change
	// afterwards.
	Start time.Time

	// End is the time the logical checkout ended. It holds the zero
	// value while checkouts are still being tried.
	End time.Time

	// Attempt is the zero-based number of the current pool checkout. It
	// is zero on the initial checkout, one on the first retry, and so
	// on.
	Attempt int

	// AttemptTimeouts counts the pool checkouts which ended because
	// their wait bound elapsed, either through pool exhaustion or an
	// attempt deadline.
	AttemptTimeouts int

	// Call is the call obtained by the most recent checkout. It is nil
	// while a checkout is underway or if the most recent checkout
	// failed.
	Call connector.ClientCall

	// Err is the error from the most recent checkout, or nil.
	Err error

	data context.Context
}

// Duration returns the duration of the logical checkout.
//
// If it has not yet started, the duration is zero. If it has ended,
// the duration is End minus Start. Otherwise it is the current time
// minus Start.
func (a *Attempt) Duration() time.Duration {
	if !a.Started() {
		return time.Duration(0)
	} else if !a.Ended() {
		return time.Since(a.Start)
	}

	return a.End.Sub(a.Start)
}

// Started indicates whether the logical checkout has started.
func (a *Attempt) Started() bool {
	return a.Start != (time.Time{})
}

// Ended indicates whether the logical checkout has ended. Once it has,
// the Attempt does not change any more.
func (a *Attempt) Ended() bool {
	return a.End != (time.Time{})
}

// Timeout indicates whether Err reports that the most recent checkout
// ran out of time, either because the pool stayed exhausted for the
// whole wait bound or because an attempt deadline passed.
func (a *Attempt) Timeout() bool {
	switch transient.Categorize(a.Err) {
	case transient.Timeout, transient.Exhausted:
		return true
	default:
		return false
	}
}

// Exhausted indicates whether the most recent checkout failed because
// every connection to the endpoint stayed in use.
func (a *Attempt) Exhausted() bool {
	return transient.Categorize(a.Err) == transient.Exhausted
}

// SetValue stores arbitrary data in the Attempt.
//
// The key must follow the same rules as the key parameter of
// context.WithValue: it may not be nil, it must be comparable, and it
// should not be of a built-in type.
func (a *Attempt) SetValue(key, value interface{}) {
	ctx := a.data
	if ctx == nil {
		ctx = context.Background()
	}

	a.data = context.WithValue(ctx, key, value)
}

// Value returns the data value associated with key, or nil.
func (a *Attempt) Value(key interface{}) interface{} {
	ctx := a.data
	if ctx == nil {
		return nil
	}

	return ctx.Value(key)
}
