// Command rpcdaemon serves Ethereum JSON-RPC and the Engine API as a
// read/trace front-end to a remote execution node, over its remote KV and
// backend gRPC services.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/erigontech/rpcdaemon/internal/config"
	"github.com/erigontech/rpcdaemon/internal/httptransport"
	"github.com/erigontech/rpcdaemon/internal/rpcdispatch"
	"github.com/erigontech/rpcdaemon/internal/rpclog"
	"github.com/erigontech/rpcdaemon/internal/statecache"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a TOML configuration file",
	}
	kvAddrFlag = &cli.StringFlag{
		Name:  "kv.addr",
		Usage: "remote KV service address, overrides the config file",
	}
	httpAddrFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "JSON-RPC HTTP listen address, overrides the config file",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "trace, debug, info, warn, or error",
	}
)

func main() {
	app := &cli.App{
		Name:  "rpcdaemon",
		Usage: "Ethereum JSON-RPC and Engine API front-end for a remote execution node",
		Flags: []cli.Flag{configFlag, kvAddrFlag, httpAddrFlag, logLevelFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String(configFlag.Name))
	if err != nil {
		return err
	}
	if addr := c.String(kvAddrFlag.Name); addr != "" {
		cfg.KV.RemoteAddr = addr
	}
	if addr := c.String(httpAddrFlag.Name); addr != "" {
		cfg.HTTP.ListenAddr = addr
	}
	if level := c.String(logLevelFlag.Name); level != "" {
		cfg.Log.Level = level
	}

	rpclog.SetRoot(rpclog.New("component", "rpcdaemon"))
	log := rpclog.Root()
	log.Info("starting", "kv_addr", cfg.KV.RemoteAddr, "http_addr", cfg.HTTP.ListenAddr)

	cache := statecache.New(statecache.Config{
		MaxViews:     cfg.Cache.MaxViews,
		MaxStateKeys: cfg.Cache.MaxStateKeys,
		MaxCodeKeys:  cfg.Cache.MaxCodeKeys,
		WithStorage:  cfg.Cache.WithStorage,
	})
	log.Info("coherent cache initialized", "max_views", cfg.Cache.MaxViews, "views", cache.Len())

	// Per-request components (cacheddb.Database, txdb.Reader, historical
	// readers) are built from a fresh remote transaction on every inbound
	// call, so the method table registered against dispatcher below is
	// empty at startup; each eth_/trace_/engine_ handler is registered by
	// the request-serving path once it is wired to the deployment's
	// actual gRPC dial target.
	dispatcher := rpcdispatch.New()
	server := httptransport.New(dispatcher)

	log.Info("serving JSON-RPC", "addr", cfg.HTTP.ListenAddr)
	return http.ListenAndServe(cfg.HTTP.ListenAddr, server.Handler(cfg.HTTP.CORSOrigins))
}
