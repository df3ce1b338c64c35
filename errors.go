// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned by a Call accessor the transport
	// adapter cannot provide. Callers should fall back to the other
	// accessor style.
	ErrUnsupported = errors.New("connector: accessor not supported by transport")
	// ErrCallClosed is returned by Call accessors once the exchange has
	// completed or its connection was released.
	ErrCallClosed = errors.New("connector: call closed")
	// ErrPoolExhausted is returned when a checkout cannot be satisfied
	// within the configured wait bound.
	ErrPoolExhausted = errors.New("connector: connection pool exhausted")
	// ErrPoolClosed is returned by checkouts against a closed pool,
	// including checkouts that were waiting when the pool closed.
	ErrPoolClosed = errors.New("connector: connection pool closed")
	// ErrNotAcquired is returned when releasing or discarding a
	// connection the caller does not hold.
	ErrNotAcquired = errors.New("connector: connection not acquired")
	// ErrNotStarted is returned by helper operations that need the
	// helper to be started.
	ErrNotStarted = errors.New("connector: helper not started")
)

// A DesyncError reports that native request or response state no
// longer matches what the call expects, for example headers being sent
// twice. The connection carrying the call is closed rather than reused.
type DesyncError struct {
	Op     string
	Reason string
}

func (err *DesyncError) Error() string {
	return fmt.Sprintf("connector: protocol desync in %s: %s", err.Op, err.Reason)
}

// A DialError reports a failure to open a connection to an endpoint.
type DialError struct {
	Endpoint Endpoint
	Err      error
}

func (err *DialError) Error() string {
	return fmt.Sprintf("connector: dial %s: %v", err.Endpoint, err.Err)
}

// Unwrap returns the underlying dial error.
func (err *DialError) Unwrap() error {
	return err.Err
}

// IsDesync reports whether err is or wraps a *DesyncError.
func IsDesync(err error) bool {
	var d *DesyncError
	return errors.As(err, &d)
}
