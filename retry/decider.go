// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"
	"time"

	"github.com/gogama/connector/checkout"
	"github.com/gogama/connector/transient"
)

// A Decider decides if a failed checkout should be retried.
//
// Implementations of Decider must be safe for concurrent use by
// multiple goroutines.
//
// Use the built-in constructors Times, Before and Is, and the built-in
// deciders TransientErr and Exhausted; or implement your own Decider.
// Use DeciderFunc to convert an ordinary function into a Decider, and
// to compose deciders logically using DeciderFunc.And and
// DeciderFunc.Or.
type Decider interface {
	Decide(a *checkout.Attempt) bool
}

// The DeciderFunc type is an adapter to allow the use of ordinary
// functions as retry deciders. It implements the Decider interface, and
// also provides the logical composition methods And and Or.
//
// Every DeciderFunc must be safe for concurrent use by multiple
// goroutines.
type DeciderFunc func(a *checkout.Attempt) bool

// DefaultTimes is the number of times DefaultPolicy will retry.
const DefaultTimes = 3

// DefaultDecider is a general-purpose retry decider. It allows up to
// DefaultTimes retries (i.e. up to 4 total checkouts), and retries only
// when the checkout error is transient (TransientErr), which includes
// pool exhaustion.
var DefaultDecider = Times(DefaultTimes).And(TransientErr)

// TransientErr is a decider that indicates a retry if the current
// error is transient according to transient.Categorize.
var TransientErr DeciderFunc = transientErr

// Exhausted is a decider that indicates a retry only if the current
// checkout failed because the pool stayed exhausted for its whole wait
// bound.
var Exhausted DeciderFunc = exhausted

// Decide returns true if a retry should be done, and false otherwise,
// after examining the current checkout state.
func (f DeciderFunc) Decide(a *checkout.Attempt) bool {
	return f(a)
}

// And composes two retry deciders into a new decider which returns true
// if both sub-deciders return true, and false otherwise.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// false.
func (f DeciderFunc) And(g DeciderFunc) DeciderFunc {
	return func(a *checkout.Attempt) bool {
		return f(a) && g(a)
	}
}

// Or composes two retry deciders into a new decider which returns
// true if either of the two sub-deciders returns true, but false if
// they both return false.
//
// Short-circuit logic is used, so g will not be evaluated if f returns
// true.
func (f DeciderFunc) Or(g DeciderFunc) DeciderFunc {
	return func(a *checkout.Attempt) bool {
		return f(a) || g(a)
	}
}

// Times constructs a retry decider which allows up to n retries. The
// returned decider returns true while the attempt index a.Attempt is
// less than n, and false otherwise.
func Times(n int) DeciderFunc {
	return func(a *checkout.Attempt) bool {
		return a.Attempt < n
	}
}

// Before constructs a retry decider allowing retries until a certain
// amount of time has elapsed since the start of the logical checkout.
func Before(d time.Duration) DeciderFunc {
	return func(a *checkout.Attempt) bool {
		return a.Duration() < d
	}
}

// Is constructs a retry decider allowing retries when the current
// error is, or wraps, one of targets according to errors.Is.
func Is(targets ...error) DeciderFunc {
	targets2 := make([]error, len(targets))
	copy(targets2, targets)
	return func(a *checkout.Attempt) bool {
		if a.Err == nil {
			return false
		}
		for _, target := range targets2 {
			if errors.Is(a.Err, target) {
				return true
			}
		}
		return false
	}
}

func transientErr(a *checkout.Attempt) bool {
	return transient.Categorize(a.Err) != transient.Not
}

func exhausted(a *checkout.Attempt) bool {
	return a.Exhausted()
}
