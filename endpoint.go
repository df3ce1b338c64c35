// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package connector

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// A Protocol is an application protocol served by a helper.
type Protocol int

const (
	// HTTP is plaintext HTTP/1.x.
	HTTP Protocol = iota
	// HTTPS is HTTP/1.x over TLS.
	HTTPS
)

var protocolNames = []string{
	"HTTP",
	"HTTPS",
}

// Name returns the name of the protocol.
func (p Protocol) Name() string {
	return protocolNames[int(p)]
}

// String returns the name of the protocol.
func (p Protocol) String() string {
	return p.Name()
}

// Scheme returns the URI scheme of the protocol.
func (p Protocol) Scheme() string {
	return strings.ToLower(p.Name())
}

// Confidential reports whether the protocol runs over an encrypted
// channel.
func (p Protocol) Confidential() bool {
	return p == HTTPS
}

// DefaultPort returns the well-known port of the protocol.
func (p Protocol) DefaultPort() int {
	if p == HTTPS {
		return 443
	}
	return 80
}

// An Endpoint identifies a remote destination. Endpoints are
// comparable and serve as connection pool keys: two endpoints share
// pooled connections only if all three fields are equal.
type Endpoint struct {
	Host         string
	Port         int
	Confidential bool
}

// ParseEndpoint parses an absolute http or https URL into an Endpoint.
// The port defaults to the scheme's well-known port. Any path is
// ignored.
func ParseEndpoint(rawURL string) (Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, err
	}
	var p Protocol
	switch strings.ToLower(u.Scheme) {
	case "http":
		p = HTTP
	case "https":
		p = HTTPS
	default:
		return Endpoint{}, fmt.Errorf("connector: unsupported scheme %q in %q", u.Scheme, rawURL)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("connector: missing host in %q", rawURL)
	}
	port := p.DefaultPort()
	if s := u.Port(); s != "" {
		port, err = strconv.Atoi(s)
		if err != nil || port <= 0 || port > 65535 {
			return Endpoint{}, fmt.Errorf("connector: invalid port %q in %q", s, rawURL)
		}
	}
	return Endpoint{Host: host, Port: port, Confidential: p.Confidential()}, nil
}

// Protocol returns HTTPS for confidential endpoints and HTTP otherwise.
func (ep Endpoint) Protocol() Protocol {
	if ep.Confidential {
		return HTTPS
	}
	return HTTP
}

// Scheme returns "https" for confidential endpoints and "http"
// otherwise.
func (ep Endpoint) Scheme() string {
	return ep.Protocol().Scheme()
}

// Address returns the dialable host:port of the endpoint. Hosts with
// non-ASCII characters are converted to their Punycode form.
func (ep Endpoint) Address() string {
	addr := net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
	if p, err := httpguts.PunycodeHostPort(addr); err == nil {
		return p
	}
	return addr
}

// HostHeader returns the value of the Host header for requests to the
// endpoint. The port is omitted when it is the protocol default.
func (ep Endpoint) HostHeader() string {
	addr := ep.Address()
	if ep.Port != ep.Protocol().DefaultPort() {
		return addr
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// String returns the endpoint as scheme://host:port.
func (ep Endpoint) String() string {
	return ep.Scheme() + "://" + ep.Address()
}
