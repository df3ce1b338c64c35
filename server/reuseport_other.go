// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package server

import (
	"errors"
	"syscall"
)

var errReusePort = errors.New("connector/server: SO_REUSEPORT not supported on this platform")

func reusePort(_, _ string, _ syscall.RawConn) error {
	return errReusePort
}
