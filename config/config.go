// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package config loads connector settings from YAML.
//
// Durations use Go syntax, for example "30s" or "1m30s". The server
// connector type accepts its name or the legacy integer values 1, 2
// and 3:
//
//	server:
//	  port: 8182
//	  type: blocking-channel
//	  readHeaderTimeout: 10s
//	client:
//	  maxConnectionsPerEndpoint: 8
//	  checkoutTimeout: 2s
package config

import (
	"bytes"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gogama/connector"
	"github.com/gogama/connector/pool"
	"github.com/gogama/connector/server"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the server port of Default.
const DefaultPort = 8182

// Config is the root of a configuration document.
type Config struct {
	Server Server `yaml:"server"`
	Client Client `yaml:"client"`
}

// Server holds the server connector options.
type Server struct {
	Address           string         `yaml:"address"`
	Port              int            `yaml:"port"`
	Type              connector.Type `yaml:"type"`
	Confidential      bool           `yaml:"confidential"`
	CertFile          string         `yaml:"certFile"`
	KeyFile           string         `yaml:"keyFile"`
	MaxConnections    int            `yaml:"maxConnections"`
	ReusePort         bool           `yaml:"reusePort"`
	ReadHeaderTimeout time.Duration  `yaml:"readHeaderTimeout"`
}

// Client holds the client connector and connection pool options. Zero
// values select the pool defaults.
type Client struct {
	MaxConnectionsPerEndpoint int           `yaml:"maxConnectionsPerEndpoint"`
	IdleTimeout               time.Duration `yaml:"idleTimeout"`
	CheckoutTimeout           time.Duration `yaml:"checkoutTimeout"`
	SweepInterval             time.Duration `yaml:"sweepInterval"`
	DialTimeout               time.Duration `yaml:"dialTimeout"`
	KeepAlive                 time.Duration `yaml:"keepAlive"`
}

// Default returns the configuration used for options a document leaves
// out.
func Default() Config {
	return Config{
		Server: Server{
			Port:              DefaultPort,
			Type:              connector.TypeSelect,
			ReadHeaderTimeout: server.DefaultReadHeaderTimeout,
		},
		Client: Client{
			MaxConnectionsPerEndpoint: pool.DefaultMaxPerEndpoint,
			IdleTimeout:               pool.DefaultIdleTimeout,
			CheckoutTimeout:           pool.DefaultCheckoutTimeout,
			DialTimeout:               pool.DefaultDialTimeout,
		},
	}
}

// Parse decodes a YAML document over Default and validates the result.
// Unknown options are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("connector/config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses the YAML file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks option ranges.
func (cfg Config) Validate() error {
	s, c := cfg.Server, cfg.Client
	switch {
	case s.Port < 0 || s.Port > 65535:
		return fmt.Errorf("connector/config: server port %d out of range", s.Port)
	case s.Type < connector.TypeSelect || s.Type > connector.TypeSocket:
		return fmt.Errorf("connector/config: invalid server type %v", s.Type)
	case s.MaxConnections < 0:
		return errors.New("connector/config: server maxConnections must not be negative")
	case s.Confidential && (s.CertFile == "" || s.KeyFile == ""):
		return errors.New("connector/config: confidential server needs certFile and keyFile")
	case c.MaxConnectionsPerEndpoint < 0:
		return errors.New("connector/config: client maxConnectionsPerEndpoint must not be negative")
	case c.IdleTimeout < 0 || c.CheckoutTimeout < 0 || c.DialTimeout < 0:
		return errors.New("connector/config: client timeouts must not be negative")
	}
	return nil
}

// PoolConfig returns the connection pool configuration of the client
// options.
func (cfg Config) PoolConfig() pool.Config {
	c := cfg.Client
	return pool.Config{
		MaxPerEndpoint:  c.MaxConnectionsPerEndpoint,
		IdleTimeout:     c.IdleTimeout,
		CheckoutTimeout: c.CheckoutTimeout,
		SweepInterval:   c.SweepInterval,
		Dialer: &pool.NetDialer{
			Timeout:   c.DialTimeout,
			KeepAlive: c.KeepAlive,
		},
	}
}

// ServerConfig returns the server helper configuration of the server
// options. A confidential server loads its key pair here.
func (cfg Config) ServerConfig() (server.Config, error) {
	s := cfg.Server
	sc := server.Config{
		Address:           s.Address,
		Port:              s.Port,
		Type:              s.Type,
		MaxConnections:    s.MaxConnections,
		ReusePort:         s.ReusePort,
		ReadHeaderTimeout: s.ReadHeaderTimeout,
	}
	if s.Confidential {
		cert, err := tls.LoadX509KeyPair(s.CertFile, s.KeyFile)
		if err != nil {
			return server.Config{}, fmt.Errorf("connector/config: %w", err)
		}
		sc.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}
	return sc, nil
}
