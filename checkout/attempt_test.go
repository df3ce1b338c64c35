// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package checkout

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/gogama/connector"
	"github.com/stretchr/testify/assert"
)

func TestAttempt_TimeMethods(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		a := &Attempt{}
		assert.False(t, a.Started())
		assert.False(t, a.Ended())
		assert.Equal(t, time.Duration(0), a.Duration())
	})
	t.Run("started but not ended", func(t *testing.T) {
		a := &Attempt{}
		a.Start = time.Now()
		assert.True(t, a.Started())
		assert.False(t, a.Ended())
		time.Sleep(2*time.Millisecond + 50*time.Microsecond)
		d := a.Duration()
		assert.LessOrEqual(t, d, time.Since(a.Start))
		assert.GreaterOrEqual(t, d, 2*time.Millisecond)
	})
	t.Run("ended", func(t *testing.T) {
		a := &Attempt{}
		a.Start = time.Now()
		time.Sleep(2*time.Millisecond + 50*time.Microsecond)
		a.End = time.Now()
		d := a.Duration()
		assert.Greater(t, d, 2*time.Millisecond)
		assert.True(t, a.Ended())
		time.Sleep(2*time.Millisecond + 50*time.Microsecond)
		assert.Equal(t, d, a.Duration())
	})
}

func TestAttempt_Timeout(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		timeout   bool
		exhausted bool
	}{
		{"no error", nil, false, false},
		{"generic error", errors.New("foo"), false, false},
		{"pool closed", connector.ErrPoolClosed, false, false},
		{"direct timeout", syscall.ETIMEDOUT, true, false},
		{"deadline", context.DeadlineExceeded, true, false},
		{"exhausted", connector.ErrPoolExhausted, true, true},
		{"wrapped exhausted", fmt.Errorf("obtain: %w", connector.ErrPoolExhausted), true, true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			a := &Attempt{Err: testCase.err}
			assert.Equal(t, testCase.timeout, a.Timeout())
			assert.Equal(t, testCase.exhausted, a.Exhausted())
		})
	}
}

func TestAttempt_Value(t *testing.T) {
	t.Run("new Attempt", func(t *testing.T) {
		a := &Attempt{}
		assert.Nil(t, a.Value(funKey{}))
		a.SetValue(funKey{}, "bar")
		assert.Equal(t, "bar", a.Value(funKey{}))
	})
	t.Run("same key multiple times", func(t *testing.T) {
		a := &Attempt{}
		a.SetValue(funKey{}, "ham")
		a.SetValue(funkyKey{}, "eggs")
		a.SetValue(funKey{}, "spam")
		assert.Equal(t, "spam", a.Value(funKey{}))
		assert.Equal(t, "eggs", a.Value(funkyKey{}))
	})
}

type funKey struct{}

type funkyKey struct{}
