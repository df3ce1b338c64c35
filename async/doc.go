// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package async adapts an externally driven HTTP engine to the connector
call contract.

The engine owns its event loop, its sockets and its scheduling. It is
reached only through the narrow Request, Response, HeaderSet and
Engine interfaces, which a thin shim over the concrete framework
implements. Every exchange the engine delivers is wrapped in a Call and
handed to a connector.Dispatcher.

Engines of this kind expose bodies as streams only, so Call returns
connector.ErrUnsupported from the channel accessors.
*/
package async
