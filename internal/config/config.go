// Package config loads the daemon's static configuration. Library code
// never reads command-line flags directly; cmd/rpcdaemon parses flags
// with urfave/cli and hands a filled-out Config down into every
// component's constructor.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/naoina/toml"
)

// Config is the daemon's full static configuration, one section per
// component group.
type Config struct {
	KV struct {
		RemoteAddr string `toml:"remote_addr"`
	} `toml:"kv"`

	Cache struct {
		MaxViews     int  `toml:"max_views"`
		MaxStateKeys int  `toml:"max_state_keys"`
		MaxCodeKeys  int  `toml:"max_code_keys"`
		WithStorage  bool `toml:"with_storage"`
	} `toml:"cache"`

	StateSub struct {
		ReconnectInterval time.Duration `toml:"reconnect_interval"`
	} `toml:"statesub"`

	Trace struct {
		MaxConcurrency int64 `toml:"max_concurrency"`
	} `toml:"trace"`

	HTTP struct {
		ListenAddr   string   `toml:"listen_addr"`
		CORSOrigins  []string `toml:"cors_origins"`
	} `toml:"http"`

	Engine struct {
		ListenAddr   string `toml:"listen_addr"`
		JWTSecretPath string `toml:"jwt_secret_path"`
	} `toml:"engine"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Default returns the configuration a standalone daemon boots with absent
// any file or flag overrides.
func Default() Config {
	var c Config
	c.KV.RemoteAddr = "127.0.0.1:9090"
	c.Cache.MaxViews = 5
	c.Cache.MaxStateKeys = 1024
	c.Cache.MaxCodeKeys = 1024
	c.Cache.WithStorage = true
	c.StateSub.ReconnectInterval = time.Second
	c.Trace.MaxConcurrency = 8
	c.HTTP.ListenAddr = "127.0.0.1:8545"
	c.Engine.ListenAddr = "127.0.0.1:8551"
	c.Log.Level = "info"
	return c
}

// Load reads and merges a TOML config file over Default(), the same
// override-over-defaults shape naoina/toml's callers use elsewhere in
// the ecosystem.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
