// Copyright 2021 The connector Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command connectord serves HTTP through a connector helper.
//
// Requests under /relay/HOST:PORT/ are forwarded to HOST:PORT through
// the pooled client helper; every other request is echoed back:
//
//	connectord -config connector.yaml -type socket
//	curl -d hello http://localhost:8182/anything
//	curl http://localhost:8182/relay/example.com:80/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/getlantern/golog"
	"github.com/gogama/connector"
	"github.com/gogama/connector/client"
	"github.com/gogama/connector/config"
	"github.com/gogama/connector/server"
)

var log = golog.LoggerFor("connectord")

func main() {
	configPath := flag.String("config", "", "YAML configuration `file`")
	port := flag.Int("port", -1, "server port, overriding the configuration")
	typ := flag.String("type", "", "server connector type: select, blocking-channel or socket")
	flag.Parse()

	if err := run(*configPath, *port, *typ); err != nil {
		fmt.Fprintln(os.Stderr, "connectord:", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, typ string) error {
	cfg, err := loadConfig(configPath, port, typ)
	if err != nil {
		return err
	}
	sc, err := cfg.ServerConfig()
	if err != nil {
		return err
	}
	handlers := &connector.HandlerGroup{}
	handlers.PushBack(connector.AfterStart, connector.HandlerFunc(logLifecycle))
	handlers.PushBack(connector.AfterStop, connector.HandlerFunc(logLifecycle))
	handlers.PushBack(connector.AfterDial, connector.HandlerFunc(logDial))

	cl := client.New(client.Config{Pool: cfg.PoolConfig(), Handlers: handlers})
	if err = cl.Start(); err != nil {
		return err
	}
	defer cl.Stop()

	sc.Handlers = handlers
	srv := server.New(sc, newMux(cl))
	if err = srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Debugf("Received %v, shutting down", s)
	return nil
}

func loadConfig(path string, port int, typ string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if port >= 0 {
		cfg.Server.Port = port
	}
	if typ != "" {
		t, err := connector.ParseType(typ)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Server.Type = t
	}
	return cfg, cfg.Validate()
}

func logLifecycle(evt connector.Event, info *connector.Info) {
	if info.Err != nil {
		log.Errorf("%v of %T failed: %v", evt, info.Helper, info.Err)
		return
	}
	log.Debugf("%v: %T %v", evt, info.Helper, info.Helper.Protocols())
}

func logDial(_ connector.Event, info *connector.Info) {
	if info.Err != nil {
		log.Errorf("Dial %v failed: %v", info.Endpoint, info.Err)
		return
	}
	log.Debugf("Dialed %v as connection %d", info.Endpoint, info.ConnID)
}
