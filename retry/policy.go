// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"time"

	"github.com/gogama/connector/checkout"
)

// A Policy controls if and how failed checkouts are retried. After
// every failed checkout, a Policy decides whether a retry should be
// done and, if so, how long to wait before retrying.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	Decider
	Waiter
}

// DefaultPolicy is a general-purpose retry policy. It is a composition
// of DefaultDecider for retry decisions and DefaultWaiter for wait time
// calculations.
var DefaultPolicy Policy = policy{DefaultDecider, DefaultWaiter}

// Never is a policy that never retries.
var Never Policy = policy{Times(0), DefaultWaiter}

type policy struct {
	decider Decider
	waiter  Waiter
}

// NewPolicy composes a Decider and a Waiter into a retry Policy.
func NewPolicy(d Decider, w Waiter) Policy {
	if d == nil {
		panic("connector/retry: nil decider")
	}
	if w == nil {
		panic("connector/retry: nil waiter")
	}
	return policy{decider: d, waiter: w}
}

func (p policy) Decide(a *checkout.Attempt) bool {
	return p.decider.Decide(a)
}

func (p policy) Wait(a *checkout.Attempt) time.Duration {
	return p.waiter.Wait(a)
}
