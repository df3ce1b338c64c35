// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides flexible policies for retrying failed
// connection checkouts, and how long to wait before retrying.
//
// The connector layer itself never retries. Retrying is the caller's
// choice, made through client.Retrier with a Policy from this package.
//
// A Policy instance can be constructed using NewPolicy by providing a
// decision-maker, Decider, and a wait time calculator, Waiter:
//
//	decider := retry.Times(3).
//		And(retry.Before(2 * time.Second)).
//		And(retry.Exhausted.Or(retry.TransientErr))
//	waiter := retry.NewExpWaiter(20*time.Millisecond, time.Second, time.Now())
//	policy := retry.NewPolicy(decider, waiter)
//
// If the built-in functionality is insufficient, fully custom retry
// policies can be created via custom implementations of Decider,
// Waiter, or Policy.
package retry
