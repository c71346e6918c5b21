// Package config loads olens settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mpetrenko/orderlens/pkg/model"
)

// Config is the full olens configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	AMQP    AMQPConfig    `yaml:"amqp"`
	Actor   ActorConfig   `yaml:"actor"`
	Cache   CacheConfig   `yaml:"cache"`
}

// BackendConfig points at the order platform's HTTP API.
type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AMQPConfig configures the optional status-change feed. Leave URL empty
// to disable it.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// ActorConfig identifies who is acting through this client.
type ActorConfig struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Admin bool   `yaml:"admin"`
}

// CacheConfig configures the local SQLite cache.
type CacheConfig struct {
	Path       string `yaml:"path"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// DefaultPath returns the config file location. ORDERLENS_CONFIG
// overrides; otherwise it lives next to the cache under the user config
// dir.
func DefaultPath() string {
	if p := os.Getenv("ORDERLENS_CONFIG"); p != "" {
		return p
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "orderlens", "config.yaml")
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyEnv lets a shared config file serve several employees:
// ORDERLENS_ACTOR overrides the configured actor id.
func (c *Config) applyEnv() {
	if v := os.Getenv("ORDERLENS_ACTOR"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			c.Actor.ID = id
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 10
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Cache.Path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		c.Cache.Path = filepath.Join(base, "orderlens", "cache.db")
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "order_status_events"
	}
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if c.Actor.ID <= 0 {
		return errors.New("actor.id is required")
	}
	if c.Actor.Name == "" {
		return errors.New("actor.name is required")
	}
	if _, ok := model.ParseRole(c.Actor.Role); !ok {
		return fmt.Errorf("actor.role: unknown role %q", c.Actor.Role)
	}
	return nil
}

// BackendTimeout returns the backend timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long a cached snapshot is considered fresh.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// ToActor converts the actor section to a model.Actor. Call only after
// Load, which validates the role.
func (c *Config) ToActor() model.Actor {
	role, ok := model.ParseRole(c.Actor.Role)
	if !ok {
		role = model.RoleObserver
	}
	return model.Actor{
		ID:    c.Actor.ID,
		Name:  c.Actor.Name,
		Role:  role,
		Admin: c.Actor.Admin,
	}
}

// Skeleton returns a commented starter config for `olens init`.
func Skeleton() []byte {
	return []byte(`# olens configuration
backend:
  base_url: https://orders.example.com
  token: ""
  timeout_seconds: 10

# Optional push feed; leave url empty to poll only.
amqp:
  url: ""
  exchange: order_status_events

actor:
  id: 0
  name: ""
  role: picker   # picker, courier, admin or observer
  admin: false

cache:
  path: ""       # defaults under the user config dir
  ttl_seconds: 300
`)
}

// WriteSkeleton writes the starter config to path, refusing to clobber
// an existing file.
func WriteSkeleton(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, Skeleton(), 0o600)
}
