// Package config loads the server configuration from a YAML file, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/reactive-docstore/logging"
	"github.com/stevemurr/reactive-docstore/store"
)

var ErrInvalid = errors.New("invalid configuration")

// Config represents the complete server configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Watch  WatchConfig  `yaml:"watch"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // "*" allows every origin
}

type StoreConfig struct {
	Backend               string        `yaml:"backend"` // memory, sqlite
	Latency               time.Duration `yaml:"latency"` // e.g. 50ms
	EmitInitial           bool          `yaml:"emit_initial"`
	DeepCopies            bool          `yaml:"deep_copies"`
	DedupeByContent       bool          `yaml:"dedupe_by_content"`
	OrderCollectionsByKey bool          `yaml:"order_collections_by_key"`
	ThrowOnSave           bool          `yaml:"throw_on_save"`
	ThrowOnDelete         bool          `yaml:"throw_on_delete"`
}

type WatchConfig struct {
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	opts := store.DefaultOptions()
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, AllowedOrigins: []string{"*"}},
		Store: StoreConfig{
			Backend:               "memory",
			EmitInitial:           opts.EmitInitial,
			DeepCopies:            opts.DeepCopies,
			DedupeByContent:       opts.DedupeByContent,
			OrderCollectionsByKey: opts.OrderCollectionsByKey,
		},
		Watch: WatchConfig{WriteTimeout: 10 * time.Second, PingInterval: 30 * time.Second},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from HOST, PORT, STORE_BACKEND, ALLOWED_ORIGINS,
// LOG_LEVEL and STORE_LATENCY. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("HOST"); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT %q: %v", ErrInvalid, v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("STORE_BACKEND"); ok && v != "" {
		c.Store.Backend = v
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = SplitOrigins(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("STORE_LATENCY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: STORE_LATENCY %q: %v", ErrInvalid, v, err)
		}
		c.Store.Latency = d
	}
	return nil
}

// SplitOrigins parses a comma separated origin list.
func SplitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("%w: unknown store backend %q (supported: memory, sqlite)", ErrInvalid, c.Store.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Server.Port)
	}
	if c.Store.Latency < 0 {
		return fmt.Errorf("%w: negative latency %s", ErrInvalid, c.Store.Latency)
	}
	if c.Watch.WriteTimeout <= 0 || c.Watch.PingInterval <= 0 {
		return fmt.Errorf("%w: watch timeouts must be positive", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// StoreOptions builds the store configuration, including a fresh backend.
func (c *Config) StoreOptions(log logging.Logger) ([]store.Option, error) {
	backend, err := store.NewBackend(c.Store.Backend)
	if err != nil {
		return nil, err
	}
	return []store.Option{
		store.WithBackend(backend),
		store.WithLogger(log),
		store.WithLatency(c.Store.Latency),
		store.WithEmitInitial(c.Store.EmitInitial),
		store.WithDeepCopies(c.Store.DeepCopies),
		store.WithDedupeByContent(c.Store.DedupeByContent),
		store.WithOrderCollectionsByKey(c.Store.OrderCollectionsByKey),
		store.WithThrowOnSave(c.Store.ThrowOnSave),
		store.WithThrowOnDelete(c.Store.ThrowOnDelete),
	}, nil
}
