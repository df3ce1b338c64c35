// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timeout

import (
	"time"

	"github.com/gogama/connector/checkout"
)

// A Policy defines a timeout policy which may be plugged into
// client.Retrier to bound how long each pool checkout, including any
// dial it triggers, may take on the initial attempt and on retries.
//
// Implementations of Policy must be safe for concurrent use by multiple
// goroutines.
type Policy interface {
	// Timeout returns the timeout to set on the next checkout within
	// the logical checkout described by a.
	Timeout(a *checkout.Attempt) time.Duration
}

// DefaultPolicy is the default timeout policy. It sets a fixed timeout
// of 5 seconds on each checkout.
var DefaultPolicy Policy = Fixed(5 * time.Second)

// Infinite is a built-in timeout policy which never times out.
var Infinite Policy = Fixed(1<<63 - 1)

// Fixed constructs a timeout policy that uses the same value to set
// every checkout timeout. The return value is a timeout policy that
// always returns the value d.
func Fixed(d time.Duration) Policy {
	return policy([]time.Duration{d})
}

// Adaptive constructs a timeout policy that varies the next timeout
// value if the previous checkout timed out or found the pool exhausted.
//
// Use Adaptive to fail fast on the common path while still allowing a
// pool under sustained load to hand out connections eventually.
//
// Parameter usual represents the timeout value the policy will return
// for an initial checkout and for any retry where the immediately
// preceding checkout did not time out.
//
// Parameter after contains timeout values the policy will return if
// the previous checkout timed out. If this was the first timeout,
// after[0] is returned; if the second, after[1], and so on. If more
// checkouts have timed out than after has elements, then the last
// element of after is returned.
//
// Consider the following timeout policy:
//
// 	p := Adaptive(200*time.Millisecond, time.Second, 10*time.Second)
//
// The policy p will use 200 milliseconds as the usual timeout but if
// the preceding checkout timed out and was the first timeout, it will
// use 1 second; and if the previous checkout timed out and was not the
// first, it will use 10 seconds.
func Adaptive(usual time.Duration, after ...time.Duration) Policy {
	p := make([]time.Duration, 1, 1+len(after))
	p[0] = usual
	return policy(append(p, after...))
}

type policy []time.Duration

func (p policy) Timeout(a *checkout.Attempt) time.Duration {
	if !a.Timeout() {
		return p[0]
	}

	i := a.AttemptTimeouts
	if i > len(p)-1 {
		i = len(p) - 1
	}

	return p[i]
}
