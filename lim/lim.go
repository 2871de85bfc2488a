// Copyright 2026 The golim Authors

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lim is a client for the LIM-style tabular market-data service. It
// submits queries in the service's LET/SHOW/WHEN grammar over the
// asynchronous request/poll HTTP protocol, resolves symbols against the
// service's relation hierarchy, and decodes responses into date-indexed
// frames. See the package-level operations on Client for the high-level API.
package lim

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/stockparfait/errors"

	"github.com/golim/golim/db"
)

// Defaults for the submit/poll state machine.
const (
	DefaultTries        = 50  // maximum poll attempts per request
	DefaultPollInterval = 2.5 // seconds between poll attempts
)

// Config holds the connection and behavior parameters of a Client. TOML tags
// allow a config file to override the environment-derived values.
type Config struct {
	Server      string  `toml:"server"`
	Username    string  `toml:"username"`
	Password    string  `toml:"password"`
	CacheDir    string  `toml:"cache_dir"`     // empty disables the result cache
	PollSeconds float64 `toml:"poll_seconds"`  // 0 = DefaultPollInterval
	Tries       uint64  `toml:"tries"`         // 0 = DefaultTries
}

func envValue(name string) string {
	// The environment on some hosts carries quoted values.
	return strings.ReplaceAll(os.Getenv(name), `"`, "")
}

// ConfigFromEnv loads the connection parameters from LIMSERVER, LIMUSERNAME,
// LIMPASSWORD and the optional LIMCACHE, after a best-effort dotenv load.
func ConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Server:   envValue("LIMSERVER"),
		Username: envValue("LIMUSERNAME"),
		Password: envValue("LIMPASSWORD"),
		CacheDir: envValue("LIMCACHE"),
	}
	if cfg.Server == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, errors.Reason(
			"LIMSERVER, LIMUSERNAME and LIMPASSWORD must be set")
	}
	return cfg, nil
}

// ApplyFile overlays the TOML config at path on top of the receiver. Keys
// absent from the file keep their current values.
func (cfg *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotate(err, "failed to read config '%s'", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return errors.Annotate(err, "failed to parse config '%s'", path)
	}
	return nil
}

// Client is a session with the service. Methods are safe for concurrent use
// except where noted: the relation memoization is shared and mutex-guarded,
// but concurrent CachedQuery calls for the same query text require external
// serialization (the merge-and-replace of a cache entry is not atomic).
type Client struct {
	cfg        Config
	rest       *resty.Client
	tries      uint64
	interval   time.Duration
	newBackOff func() backoff.BackOff
	store      *db.Store // nil when the result cache is disabled

	relMu    sync.Mutex
	relCache map[string][]Relation
}

// New creates a Client for the configured server. The underlying transport
// picks up proxy settings from the environment.
func New(cfg *Config) (*Client, error) {
	if cfg.Server == "" {
		return nil, errors.Reason("config has no server URL")
	}
	c := &Client{
		cfg:      *cfg,
		tries:    cfg.Tries,
		relCache: make(map[string][]Relation),
	}
	if c.tries == 0 {
		c.tries = DefaultTries
	}
	seconds := cfg.PollSeconds
	if seconds == 0 {
		seconds = DefaultPollInterval
	}
	c.interval = time.Duration(seconds * float64(time.Second))
	c.rest = c.configure(resty.New())
	c.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), c.tries)
	}
	if cfg.CacheDir != "" {
		store, err := db.NewStore(cfg.CacheDir)
		if err != nil {
			return nil, errors.Annotate(err, "failed to open result cache")
		}
		c.store = store
	}
	return c, nil
}

func (c *Client) configure(r *resty.Client) *resty.Client {
	r.SetBaseURL(c.cfg.Server)
	r.SetHeader("Content-Type", "application/xml")
	if c.cfg.Username != "" {
		r.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	return r
}

// SetTransport replaces the HTTP client, primarily for tests talking to a
// scripted server.
func (c *Client) SetTransport(hc *http.Client) {
	c.rest = c.configure(resty.NewWithClient(hc))
}

// SetBackOff replaces the poll pacing policy, primarily for tests running the
// state machine without real time passing. The factory is invoked once per
// submitted request.
func (c *Client) SetBackOff(f func() backoff.BackOff) {
	c.newBackOff = f
}

// Store returns the result cache store, or nil when caching is disabled.
func (c *Client) Store() *db.Store { return c.store }
