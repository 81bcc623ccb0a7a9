// Package config loads flowtrim settings from a TOML or YAML file.
//
// A file has three optional sections:
//
//	[collapse]
//	thresh = 1.0
//	mainstem_thresh = 0.5
//	add_category = true
//	warn = true
//	exclude = [101, 205]
//
//	[cache]
//	backend = "file"   # file, redis, mongo or none
//	dir = "~/.cache/flowtrim"
//	ttl = "24h"
//
//	[server]
//	addr = ":8080"
//
// YAML files use the same keys. Command-line flags override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/flowtrim/pkg/errors"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
	BackendNone  = "none"
)

// DefaultTTL is how long cached collapse results are kept.
const DefaultTTL = 7 * 24 * time.Hour

// Config is the full file configuration.
type Config struct {
	Collapse Collapse `toml:"collapse" yaml:"collapse"`
	Cache    Cache    `toml:"cache" yaml:"cache"`
	Server   Server   `toml:"server" yaml:"server"`
}

// Collapse holds the algorithm options.
type Collapse struct {
	Thresh         float64 `toml:"thresh" yaml:"thresh"`
	MainstemThresh float64 `toml:"mainstem_thresh" yaml:"mainstem_thresh"`
	AddCategory    bool    `toml:"add_category" yaml:"add_category"`
	Warn           bool    `toml:"warn" yaml:"warn"`
	Exclude        []int64 `toml:"exclude" yaml:"exclude"`
}

// Cache selects and configures the result cache.
type Cache struct {
	Backend   string   `toml:"backend" yaml:"backend"`
	Dir       string   `toml:"dir" yaml:"dir"`
	RedisAddr string   `toml:"redis_addr" yaml:"redis_addr"`
	MongoURI  string   `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDB   string   `toml:"mongo_db" yaml:"mongo_db"`
	TTL       Duration `toml:"ttl" yaml:"ttl"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Duration is a time.Duration written as a string such as "24h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML
// decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Cache: Cache{
			Backend: BackendFile,
			MongoDB: "flowtrim",
			TTL:     Duration{DefaultTTL},
		},
		Server: Server{Addr: ":8080"},
	}
}

// Load reads the file at path on top of [Default]. The format is chosen by
// extension: .toml, .yaml or .yml.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", path)
		}
	default:
		return cfg, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q", filepath.Ext(path))
	}
	return cfg, cfg.Validate()
}

// Validate checks values that do not depend on command-line overrides.
// The collapse threshold is optional here because it may come from a flag.
func (c Config) Validate() error {
	if err := errors.ValidateThreshold("thresh", c.Collapse.Thresh, false); err != nil {
		return err
	}
	if err := errors.ValidateThreshold("mainstem_thresh", c.Collapse.MainstemThresh, false); err != nil {
		return err
	}
	if err := errors.ValidateCOMIDs(c.Collapse.Exclude); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case BackendFile, BackendRedis, BackendMongo, BackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend redis requires redis_addr")
	}
	if c.Cache.Backend == BackendMongo && c.Cache.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache backend mongo requires mongo_uri")
	}
	if c.Cache.TTL.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "cache ttl must not be negative")
	}
	return nil
}
