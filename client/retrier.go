// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package client

import (
	"context"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/checkout"
	"github.com/gogama/connector/retry"
	"github.com/gogama/connector/timeout"
)

// An Obtainer hands out client calls. Helper is the standard
// implementation.
type Obtainer interface {
	ObtainCall(ctx context.Context, ep connector.Endpoint) (connector.ClientCall, error)
}

// A Retrier obtains calls from an Obtainer, retrying failed checkouts
// according to a retry policy. Each checkout attempt is bounded by the
// timeout policy.
//
// The zero value is not usable since Obtainer is required. Nil
// policies select retry.DefaultPolicy and timeout.DefaultPolicy.
type Retrier struct {
	// Obtainer hands out the calls. It must not be nil.
	Obtainer Obtainer

	// RetryPolicy decides whether, and how long to wait before, the
	// next attempt after a failed checkout.
	RetryPolicy retry.Policy

	// TimeoutPolicy bounds each checkout attempt.
	TimeoutPolicy timeout.Policy
}

// ObtainCall obtains a call to ep, retrying as the retry policy
// allows. The returned attempt describes the final checkout attempt;
// on success its Call field holds the call. The error, if any, is the
// attempt's Err.
//
// Retrying stops early if ctx ends, in which case the error is
// ctx.Err().
func (r *Retrier) ObtainCall(ctx context.Context, ep connector.Endpoint) (*checkout.Attempt, error) {
	if r.Obtainer == nil {
		panic("connector/client: nil obtainer")
	}

	retryPolicy := r.RetryPolicy
	if retryPolicy == nil {
		retryPolicy = retry.DefaultPolicy
	}

	timeoutPolicy := r.TimeoutPolicy
	if timeoutPolicy == nil {
		timeoutPolicy = timeout.DefaultPolicy
	}

	a := &checkout.Attempt{
		Endpoint: ep,
		Start:    time.Now(),
	}

RetryLoop:
	for {
		r.obtain(ctx, a, timeoutPolicy)
		if a.Err == nil {
			break
		}
		if a.Timeout() {
			a.AttemptTimeouts++
		}
		if err := ctx.Err(); err != nil {
			a.Err = err
			break
		}
		if !retryPolicy.Decide(a) {
			break
		}
		wait := retryPolicy.Wait(a)
		log.Debugf("Checkout %d for %v failed, retrying in %v: %v", a.Attempt, ep, wait, a.Err)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			a.Err = ctx.Err()
			break RetryLoop
		}
		a.Attempt++
	}

	a.End = time.Now()
	return a, a.Err
}

// obtain runs one checkout attempt. The timeout policy sees the error
// of the previous attempt, if there was one.
func (r *Retrier) obtain(ctx context.Context, a *checkout.Attempt, timeoutPolicy timeout.Policy) {
	ctx, cancel := context.WithTimeout(ctx, timeoutPolicy.Timeout(a))
	defer cancel()
	a.Call, a.Err = r.Obtainer.ObtainCall(ctx, a.Endpoint)
}
