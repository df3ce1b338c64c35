// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package checkout describes the state of one logical attempt to obtain
an outbound call from a client helper, possibly spanning several
checkouts against the connection pool.

An Attempt is created by client.Retrier for each ObtainCall and updated
as checkouts are tried. Retry and timeout policies (packages retry and
timeout) read it to decide what happens next:

	a := &checkout.Attempt{Endpoint: ep}
	...
	if a.Exhausted() {
		// Every connection to ep stayed busy for the whole wait bound.
	}

Policies and event handlers may attach their own data to an Attempt
with SetValue and read it back with Value.
*/
package checkout
