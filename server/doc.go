// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package server provides the server connector helper, which binds a
listener and hands every inbound exchange to a connector.Dispatcher as
a connector.ServerCall.

The connector type is chosen when the Helper is constructed:

	connector.TypeSelect           net/http server; the runtime poller
	                               multiplexes the sockets
	connector.TypeBlockingChannel  one goroutine per connection with
	                               channel-style body accessors
	connector.TypeSocket           one goroutine per connection,
	                               stream accessors only

Every type presents the same ServerCall contract. A transport which
cannot offer an accessor style returns connector.ErrUnsupported from
it, and connector.RequestReader and connector.ResponseWriter fall back
to the stream accessors.

	d := connector.DispatcherFunc(func(c connector.ServerCall) {
		c.SetResponseStatus(200, "OK")
		h, _ := c.ResponseHeaders()
		h.Set("Content-Type", "text/plain")
		w, _ := connector.ResponseWriter(c)
		io.WriteString(w, "hello\n")
	})
	srv := server.New(server.Config{Port: 8080, Type: connector.TypeSocket}, d)
	if err := srv.Start(); err != nil {
		...
	}
	defer srv.Stop()

When Dispatch returns, response headers that were never sent are sent,
the response body is finished and the call is closed: its header and
body accessors return connector.ErrCallClosed from then on.
*/
package server
