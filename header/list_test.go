// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package header

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	t.Run("zero value", func(t *testing.T) {
		var l List
		assert.Equal(t, 0, l.Len())
		v, ok := l.First("foo")
		assert.False(t, ok)
		assert.Empty(t, v)
		assert.Nil(t, l.All("foo"))
		assert.Nil(t, l.Fields())
	})
	t.Run("duplicate names", func(t *testing.T) {
		var l List
		l.Add("Host", "x")
		l.Add("Host", "y")
		l.Add("Accept", "*/*")
		assert.Equal(t, []string{"x", "y"}, l.All("Host"))
		v, ok := l.First("host")
		assert.True(t, ok)
		assert.Equal(t, "x", v)
		assert.Equal(t, "*/*", l.Get("ACCEPT"))
		assert.Equal(t, []Field{{"Host", "x"}, {"Host", "y"}, {"Accept", "*/*"}}, l.Fields())
	})
	t.Run("case preserved", func(t *testing.T) {
		var l List
		l.Add("x-CUSTOM-header", "1")
		assert.Equal(t, "x-CUSTOM-header", l.At(0).Name)
		assert.Equal(t, []string{"1"}, l.All("X-Custom-Header"))
	})
	t.Run("ASCII folding only", func(t *testing.T) {
		var l List
		l.Add("X-Kind", "1")
		l.Add("X-\u212aind", "2")
		assert.Equal(t, []string{"1"}, l.All("x-kind"))
		assert.Equal(t, []string{"2"}, l.All("X-\u212aind"))
		l.Del("X-KIND")
		assert.Equal(t, []Field{{"X-\u212aind", "2"}}, l.Fields())
		l.Set("x-kind", "3")
		assert.Equal(t, []Field{{"X-\u212aind", "2"}, {"x-kind", "3"}}, l.Fields())
		_, ok := l.First("X-Kin")
		assert.False(t, ok)
	})
	t.Run("malformed but non-empty", func(t *testing.T) {
		var l List
		assert.NotPanics(t, func() {
			l.Add("bad name", "bad\x00value")
		})
		assert.Equal(t, "bad\x00value", l.Get("BAD NAME"))
	})
	t.Run("Set", func(t *testing.T) {
		var l List
		l.Add("A", "1")
		l.Add("B", "2")
		l.Add("a", "3")
		l.Add("C", "4")
		l.Set("a", "x")
		assert.Equal(t, []Field{{"a", "x"}, {"B", "2"}, {"C", "4"}}, l.Fields())
		l.Set("D", "5")
		assert.Equal(t, []Field{{"a", "x"}, {"B", "2"}, {"C", "4"}, {"D", "5"}}, l.Fields())
	})
	t.Run("Del", func(t *testing.T) {
		var l List
		l.Add("A", "1")
		l.Add("B", "2")
		l.Add("a", "3")
		l.Del("A")
		assert.Equal(t, []Field{{"B", "2"}}, l.Fields())
		l.Del("missing")
		assert.Equal(t, 1, l.Len())
	})
	t.Run("Dispose", func(t *testing.T) {
		var l List
		l.Add("A", "1")
		l.Add("B", "2")
		l.Dispose()
		assert.Equal(t, 0, l.Len())
		l.Add("C", "3")
		assert.Equal(t, []Field{{"C", "3"}}, l.Fields())
	})
	t.Run("Clone", func(t *testing.T) {
		var l List
		l.Add("A", "1")
		c := l.Clone()
		c.Add("B", "2")
		assert.Equal(t, 1, l.Len())
		assert.Equal(t, 2, c.Len())
	})
	t.Run("HasToken", func(t *testing.T) {
		var l List
		l.Add("Connection", "keep-alive, Upgrade")
		assert.True(t, l.HasToken("connection", "upgrade"))
		assert.False(t, l.HasToken("Connection", "close"))
		l.Add("Connection", "Close")
		assert.True(t, l.HasToken("Connection", "close"))
	})
}

func TestValid(t *testing.T) {
	assert.True(t, ValidName("Content-Type"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("bad name"))
	assert.True(t, ValidValue("text/html; charset=utf-8"))
	assert.False(t, ValidValue("bad\r\nvalue"))
}

func TestFields(t *testing.T) {
	f := Fields{{"A", "1"}}
	assert.Equal(t, 1, f.Len())
	x, err := f.At(0)
	require.NoError(t, err)
	assert.Equal(t, Field{"A", "1"}, x)
	_, err = f.At(1)
	assert.Error(t, err)
}
