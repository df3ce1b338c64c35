// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux || darwin

package pool

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peekSocket peeks one byte from a raw socket with MSG_PEEK and
// MSG_DONTWAIT, so an empty socket reports WouldBlock immediately
// instead of parking the goroutine. The boolean result is false if nc
// does not expose its file descriptor.
func peekSocket(nc net.Conn) (Readiness, bool) {
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return WouldBlock, false
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return PeerClosed, true
	}
	var r Readiness
	var b [1]byte
	err = raw.Read(func(fd uintptr) bool {
		n, _, err := unix.Recvfrom(int(fd), b[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		switch {
		case n > 0:
			r = DataAvailable
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR:
			r = WouldBlock
		default:
			r = PeerClosed
		}
		return true
	})
	if err != nil {
		return PeerClosed, true
	}
	return r, true
}
