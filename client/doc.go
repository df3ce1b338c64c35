// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package client provides the client connector helper, which owns a
connection pool and hands out outbound HTTP/1.1 calls over pooled
connections.

A Helper must be started before it can hand out calls. Starting only
builds the pool's bookkeeping: connections are dialed lazily, on the
first call to each endpoint.

	h := client.New(client.Config{Pool: pool.Config{MaxPerEndpoint: 4}})
	if err := h.Start(); err != nil {
		...
	}
	defer h.Stop()

	call, err := h.ObtainCall(ctx, ep)
	if err != nil {
		...
	}
	defer h.Release(call)
	_ = call.SetRequest("GET", "/status")
	if err = call.ReceiveResponse(); err != nil {
		...
	}
	code, reason := call.ResponseStatus()
	body, _ := call.ResponseBody()
	...

Release returns the connection to the pool only if the exchange
completed cleanly: the request was fully sent, the response body was
read to its end, and neither side asked to close the connection. In
every other case the connection is discarded.

Use a Retrier to retry checkouts which fail for transient reasons, such
as pool exhaustion or a refused dial, according to a retry.Policy.
*/
package client
