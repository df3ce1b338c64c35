// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

import "sync"

// A Lifecycle serializes the start and stop transitions of a helper.
// Its zero value is stopped.
//
// Transition functions run under the lifecycle's lock, so concurrent
// Start and Stop calls never bind or close the underlying resource
// twice.
type Lifecycle struct {
	mu      sync.Mutex
	started bool
}

// Start runs fn and marks the lifecycle started if fn succeeds. If the
// lifecycle is already started, Start does nothing and returns nil.
func (l *Lifecycle) Start(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	l.started = true
	return nil
}

// Stop runs fn and marks the lifecycle stopped if fn succeeds. If the
// lifecycle is already stopped, Stop does nothing and returns nil.
func (l *Lifecycle) Stop(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	l.started = false
	return nil
}

// Started reports whether the lifecycle is started.
func (l *Lifecycle) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}
