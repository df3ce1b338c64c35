// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package async

import (
	"bytes"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"
)

type fakeHeaders struct {
	names  []string
	values []string
}

func newFakeHeaders(pairs ...string) *fakeHeaders {
	hs := &fakeHeaders{}
	for i := 0; i+1 < len(pairs); i += 2 {
		hs.add(pairs[i], pairs[i+1])
	}
	return hs
}

func (hs *fakeHeaders) add(name, value string) {
	hs.names = append(hs.names, name)
	hs.values = append(hs.values, value)
}

func (hs *fakeHeaders) Len() int           { return len(hs.names) }
func (hs *fakeHeaders) Name(i int) string  { return hs.names[i] }
func (hs *fakeHeaders) Value(i int) string { return hs.values[i] }
func (hs *fakeHeaders) Dispose()           { hs.names, hs.values = nil, nil }

type fakeRequest struct {
	method  string
	uri     string
	remote  string
	headers *fakeHeaders
	body    io.Reader
}

func newFakeRequest(method, uri string, body string, headers ...string) *fakeRequest {
	return &fakeRequest{
		method:  method,
		uri:     uri,
		remote:  "10.0.0.7",
		headers: newFakeHeaders(headers...),
		body:    strings.NewReader(body),
	}
}

func (r *fakeRequest) Method() string        { return r.method }
func (r *fakeRequest) URI() string           { return r.uri }
func (r *fakeRequest) RemoteAddress() string { return r.remote }
func (r *fakeRequest) Headers() HeaderSet    { return r.headers }
func (r *fakeRequest) Body() io.Reader       { return r.body }

func (r *fakeRequest) Header(name string) string {
	for i, n := range r.headers.names {
		if strings.EqualFold(n, name) {
			return r.headers.values[i]
		}
	}
	return ""
}

type fakeResponse struct {
	code    int
	reason  string
	headers *fakeHeaders
	body    bytes.Buffer
}

func newFakeResponse(headers ...string) *fakeResponse {
	return &fakeResponse{code: 200, reason: "OK", headers: newFakeHeaders(headers...)}
}

func (r *fakeResponse) Status() (int, string)             { return r.code, r.reason }
func (r *fakeResponse) SetStatus(code int, reason string) { r.code, r.reason = code, reason }
func (r *fakeResponse) Headers() HeaderSet                { return r.headers }
func (r *fakeResponse) AddHeader(name, value string)      { r.headers.add(name, value) }
func (r *fakeResponse) Body() io.Writer                   { return &r.body }

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) Serve(h Handler) error {
	args := m.Called(h)
	return args.Error(0)
}

func (m *mockEngine) Shutdown() error {
	args := m.Called()
	return args.Error(0)
}
