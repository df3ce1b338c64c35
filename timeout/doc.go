// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout defines policies for bounding each connection pool
// checkout made on behalf of a caller, including on retries. A generic
// interface for timeout policies is provided, Policy, along with
// several useful policy generating functions and built-in policies.
package timeout
