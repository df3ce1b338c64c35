// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

import (
	"fmt"
	"strings"
)

// A Type selects the engine a server helper runs. It is chosen when the
// helper is constructed and cannot change afterwards.
type Type int

const (
	// TypeSelect multiplexes many connections over the runtime network
	// poller. Reads and writes never block an OS thread. It is the
	// default.
	TypeSelect Type = iota
	// TypeBlockingChannel serves each connection on its own goroutine
	// with blocking reads, and offers channel-style body accessors.
	TypeBlockingChannel
	// TypeSocket serves each connection on its own goroutine with
	// blocking reads, and offers stream accessors only.
	TypeSocket
	typeSentinel
)

var typeNames = []string{
	"select",
	"blocking-channel",
	"socket",
}

// Types returns every connector type, in legacy numeric order.
func Types() []Type {
	return []Type{
		TypeSelect,
		TypeBlockingChannel,
		TypeSocket,
	}
}

// String returns the configuration name of the type.
func (t Type) String() string {
	if t < 0 || t >= typeSentinel {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[int(t)]
}

// ParseType parses a connector type from its configuration name or its
// legacy numeric form ("1", "2" or "3"). The empty string yields
// TypeSelect.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", "select":
		return TypeSelect, nil
	case "2", "blocking-channel":
		return TypeBlockingChannel, nil
	case "3", "socket":
		return TypeSocket, nil
	default:
		return TypeSelect, fmt.Errorf("connector: unknown connector type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t < 0 || t >= typeSentinel {
		return nil, fmt.Errorf("connector: invalid connector type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	x, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = x
	return nil
}
