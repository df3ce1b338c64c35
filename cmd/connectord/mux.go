// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/client"
	"github.com/gogama/connector/retry"
	"github.com/gogama/connector/timeout"
)

const relayPrefix = "/relay/"

// relayTimeout bounds one relayed exchange, checkout retries included.
const relayTimeout = time.Minute

// relayCheckout bounds each checkout attempt of a relay. A slow first
// attempt is given more room on the retries.
var relayCheckout = timeout.Adaptive(2*time.Second, 5*time.Second)

// relayRetry retries transient checkout failures, such as a refused
// dial or an exhausted pool, a few times with jittered backoff.
var relayRetry = retry.NewPolicy(
	retry.Times(retry.DefaultTimes).And(retry.TransientErr),
	retry.NewExpWaiter(20*time.Millisecond, 250*time.Millisecond, time.Now()),
)

var hopByHop = []string{"Connection", "Keep-Alive", "Proxy-Connection", "Upgrade", "Transfer-Encoding"}

type mux struct {
	cl *client.Helper
	r  *client.Retrier
}

// newMux returns a dispatcher which echoes requests and, if cl is not
// nil, relays requests under relayPrefix through cl.
func newMux(cl *client.Helper) *mux {
	m := &mux{cl: cl}
	if cl != nil {
		m.r = &client.Retrier{Obtainer: cl, RetryPolicy: relayRetry, TimeoutPolicy: relayCheckout}
	}
	return m
}

func (m *mux) Dispatch(c connector.ServerCall) {
	u, err := url.Parse(c.RequestURI())
	if err != nil {
		respond(c, 400, "Bad Request", err.Error())
		return
	}
	if rest, ok := strings.CutPrefix(u.Path, relayPrefix); ok && m.cl != nil {
		m.relay(c, rest, u.RawQuery)
		return
	}
	echo(c)
}

// echo answers with the request line, the request headers and the
// request body.
func echo(c connector.ServerCall) {
	in, err := c.RequestHeaders()
	if err != nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", c.RequestMethod(), c.RequestURI())
	for _, f := range in.Fields() {
		fmt.Fprintf(&sb, "%s: %s\n", f.Name, f.Value)
	}
	sb.WriteString("\n")

	h, _ := c.ResponseHeaders()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	w, err := connector.ResponseWriter(c)
	if err != nil {
		return
	}
	_, _ = io.WriteString(w, sb.String())
	r, err := connector.RequestReader(c)
	if err != nil {
		return
	}
	_, _ = io.Copy(w, r)
}

func (m *mux) relay(c connector.ServerCall, rest, query string) {
	hostport, target, _ := strings.Cut(rest, "/")
	target = "/" + target
	if query != "" {
		target += "?" + query
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		respond(c, 400, "Bad Request", err.Error())
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		respond(c, 400, "Bad Request", "invalid port "+portStr)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	ep := connector.Endpoint{Host: host, Port: port}
	a, err := m.r.ObtainCall(ctx, ep)
	if err != nil {
		log.Errorf("Unable to obtain a call to %v after %d attempts: %v", ep, a.Attempt+1, err)
		respond(c, 502, "Bad Gateway", err.Error())
		return
	}
	call := a.Call
	defer func() {
		if err := m.cl.Release(call); err != nil {
			log.Debugf("Connection to %v not reused: %v", ep, err)
		}
	}()
	if err = forward(c, call, target); err != nil {
		log.Errorf("Relay to %v%s failed: %v", ep, target, err)
		respond(c, 502, "Bad Gateway", err.Error())
	}
}

func forward(c connector.ServerCall, call connector.ClientCall, target string) error {
	if err := call.SetRequest(c.RequestMethod(), target); err != nil {
		return err
	}
	in, err := c.RequestHeaders()
	if err != nil {
		return err
	}
	out, err := call.RequestHeaders()
	if err != nil {
		return err
	}
	for _, f := range in.Fields() {
		if strings.EqualFold(f.Name, "Host") || isHopByHop(f.Name) && !strings.EqualFold(f.Name, "Transfer-Encoding") {
			continue
		}
		out.Add(f.Name, f.Value)
	}
	body, err := c.RequestBody()
	if err != nil {
		return err
	}
	w, err := call.RequestBody()
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, body); err != nil {
		return err
	}
	if err = call.ReceiveResponse(); err != nil {
		return err
	}

	c.SetResponseStatus(call.ResponseStatus())
	upstream, err := call.ResponseHeaders()
	if err != nil {
		return err
	}
	h, err := c.ResponseHeaders()
	if err != nil {
		return err
	}
	h.Dispose()
	for _, f := range upstream.Fields() {
		if !isHopByHop(f.Name) {
			h.Add(f.Name, f.Value)
		}
	}
	rb, err := call.ResponseBody()
	if err != nil {
		return err
	}
	rw, err := connector.ResponseWriter(c)
	if err != nil {
		return err
	}
	_, err = io.Copy(rw, rb)
	return err
}

func isHopByHop(name string) bool {
	for _, h := range hopByHop {
		if strings.EqualFold(h, name) {
			return true
		}
	}
	return false
}

// respond sends a short plain text response unless the response head
// is already out.
func respond(c connector.ServerCall, code int, reason, msg string) {
	c.SetResponseStatus(code, reason)
	h, err := c.ResponseHeaders()
	if err != nil {
		return
	}
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(msg)+1))
	if err = c.SendResponseHeaders(); err != nil {
		return
	}
	if w, err := c.ResponseBody(); err == nil {
		_, _ = io.WriteString(w, msg+"\n")
	}
}
