// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package header contains the ordered name/value header abstraction shared by
every transport adapter.

A List keeps header fields in insertion order, allows repeated names, and
looks names up case-insensitively while preserving their original case:

	var l header.List
	l.Add("Accept", "text/html")
	l.Add("accept", "application/json")
	v, ok := l.First("ACCEPT") // "text/html", true
	all := l.All("Accept")     // ["text/html", "application/json"]

Transport-native header structures are exposed to this package through the
Source interface, which enumerates fields by index. Lazy copies a Source
into a List at most once, which is how calls materialize request and
response headers on first access.
*/
package header
