// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"syscall"
	"testing"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/checkout"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	t.Run("Decider", func(t *testing.T) {
		for i := 0; i < DefaultTimes; i++ {
			assert.True(t, DefaultPolicy.Decide(&checkout.Attempt{
				Attempt: i,
				Err:     connector.ErrPoolExhausted,
			}))
			assert.True(t, DefaultPolicy.Decide(&checkout.Attempt{
				Attempt: i,
				Err:     syscall.ECONNRESET,
			}))
		}
		assert.False(t, DefaultPolicy.Decide(&checkout.Attempt{
			Attempt: DefaultTimes,
			Err:     syscall.ETIMEDOUT,
		}))
	})
	t.Run("Waiter", func(t *testing.T) {
		m := []int{10, 20, 40, 80, 160, 320, 500, 500}
		total := time.Duration(0)
		for i, max := range m {
			a := checkout.Attempt{Attempt: i}
			w := DefaultPolicy.Wait(&a)
			total += w
			assert.GreaterOrEqual(t, w, time.Duration(0))
			assert.LessOrEqual(t, w, time.Duration(max)*time.Millisecond)
		}
		assert.Greater(t, total, time.Duration(0))
	})
}

func TestNever(t *testing.T) {
	assert.False(t, Never.Decide(&checkout.Attempt{}))
	assert.False(t, Never.Decide(&checkout.Attempt{Err: connector.ErrPoolExhausted}))
}

func TestNewPolicy(t *testing.T) {
	p := &testPolicy{}
	t.Run("Bad Args", func(t *testing.T) {
		assert.PanicsWithValue(t, "connector/retry: nil decider", func() { NewPolicy(nil, p) })
		assert.PanicsWithValue(t, "connector/retry: nil waiter", func() { NewPolicy(p, nil) })
	})
	t.Run("Normal", func(t *testing.T) {
		P := NewPolicy(p, p)
		assert.True(t, P.Decide(&checkout.Attempt{}))
		assert.Equal(t, 1, p.d)
		assert.Equal(t, time.Second, P.Wait(&checkout.Attempt{}))
		assert.Equal(t, 1, p.w)
	})
}

type testPolicy struct {
	d int
	w int
}

func (p *testPolicy) Decide(_ *checkout.Attempt) bool {
	p.d++
	return true
}

func (p *testPolicy) Wait(_ *checkout.Attempt) time.Duration {
	p.w++
	return time.Second
}
