// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors from connection checkouts and
// HTTP exchanges as transient or non-transient. This is handy for
// writing retry policies, and for other purposes such as bucketing
// error metrics.
//
// Pool exhaustion is reported as its own category, Exhausted, so that
// callers can back off differently than after a network timeout.
package transient
