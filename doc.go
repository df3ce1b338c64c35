// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package connector provides a transport-neutral HTTP call model which
can be driven by interchangeable network transports, along with the
lifecycle contract for the helpers that run those transports.

Upper layers see every exchange as a Call. Inbound exchanges arrive as
a ServerCall handed to a Dispatcher:

	d := connector.DispatcherFunc(func(c connector.ServerCall) {
		h, _ := c.RequestHeaders()
		log.Printf("%s %s (%d headers)", c.RequestMethod(), c.RequestURI(), h.Len())
		c.SetResponseStatus(200, "OK")
		rh, _ := c.ResponseHeaders()
		rh.Add("Content-Type", "text/plain")
		w, _ := c.ResponseBody()
		io.WriteString(w, "hello")
	})
	srv := server.New(server.Config{Port: 8080, Type: connector.TypeSelect}, d)
	err := srv.Start()
	...

Outbound exchanges are obtained from a client helper, which owns a
connection pool keyed by Endpoint:

	cl := client.New(client.Config{Pool: pool.Config{MaxPerEndpoint: 4}})
	err := cl.Start()
	...
	ep, _ := connector.ParseEndpoint("https://api.example.com")
	call, err := cl.ObtainCall(ctx, ep)
	...
	defer cl.Release(call)

Transport adapters that cannot offer one accessor style return
ErrUnsupported; use RequestReader and ResponseWriter to fall back
automatically.

To observe helper and pool activity, install a handler into the
appropriate handler chain:

	handlers := &connector.HandlerGroup{}
	handlers.PushBack(connector.AfterDial, connector.HandlerFunc(
		func(_ connector.Event, info *connector.Info) {
			log.Printf("dialed %s: conn %d err %v", info.Endpoint, info.ConnID, info.Err)
		}),
	)

Package connector also provides the helper Lifecycle, the server
connector Type enumeration and the error values shared by every
transport.
*/
package connector
