// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build !linux && !darwin

package pool

import "net"

func peekSocket(_ net.Conn) (Readiness, bool) {
	return WouldBlock, false
}
