// Package config loads attack-kb.yaml configuration files.
//
// A configuration names the dataset to load, how the tool server listens,
// where it registers, which work queues it consumes and how it logs. Every field is optional except the
// dataset location; getters return defaults for unset values. Environment
// variables prefixed ATTACKKB_ override file values (see ApplyEnv).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zero-day-ai/attack-kb/registry"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up in directories.
const DefaultFileName = "attack-kb.yaml"

// Config represents an attack-kb.yaml configuration file.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Server   ServerConfig   `yaml:"server"`
	Registry RegistryConfig `yaml:"registry"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
}

// DatasetConfig locates the ATT&CK bundle.
type DatasetConfig struct {
	// Path is a bundle file, optionally gzip or zstd compressed.
	Path string `yaml:"path" validate:"required_without=RedisURL"`

	// RedisURL reads the bundle from Redis instead of a file.
	RedisURL string `yaml:"redis_url,omitempty" validate:"omitempty,url"`

	// RedisKey holds the bundle bytes. Default: stix.DefaultRedisKey
	RedisKey string `yaml:"redis_key,omitempty"`

	// IncludeInactive keeps revoked and deprecated objects.
	IncludeInactive bool `yaml:"include_inactive,omitempty"`

	// LoadTimeout bounds reading and indexing the dataset.
	// Format: Go duration string (e.g., "30s", "1m")
	// Default: 2m
	LoadTimeout string `yaml:"load_timeout,omitempty" validate:"omitempty,duration"`
}

// ServerConfig configures the gRPC tool server.
type ServerConfig struct {
	// Port is the TCP port. Default: 50051
	Port int `yaml:"port,omitempty" validate:"gte=0,lte=65535"`

	// Socket is a Unix socket path used instead of TCP.
	Socket string `yaml:"socket,omitempty"`

	// AdvertiseAddr is the address published in the registry.
	AdvertiseAddr string `yaml:"advertise_addr,omitempty"`

	// GracefulTimeout bounds shutdown. Default: 30s
	GracefulTimeout string `yaml:"graceful_timeout,omitempty" validate:"omitempty,duration"`

	// CallTimeout bounds calls without timeout_ms. Default: 30s
	CallTimeout string `yaml:"call_timeout,omitempty" validate:"omitempty,duration"`

	// RateLimit is tool calls per second; 0 disables. Default: 100
	RateLimit *float64 `yaml:"rate_limit,omitempty" validate:"omitempty,gte=0"`

	// RateBurst is the token bucket size. Default: 50
	RateBurst int `yaml:"rate_burst,omitempty" validate:"gte=0"`

	TLSCertFile string `yaml:"tls_cert_file,omitempty" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `yaml:"tls_key_file,omitempty" validate:"required_with=TLSCertFile"`
}

// RegistryConfig configures etcd self registration. Registration is off
// when Endpoints is empty.
type RegistryConfig struct {
	Endpoints []string `yaml:"endpoints,omitempty" validate:"omitempty,dive,required"`
	Namespace string   `yaml:"namespace,omitempty"`
	TTL       int      `yaml:"ttl,omitempty" validate:"gte=0"`
}

// QueueConfig configures the Redis work-queue worker.
type QueueConfig struct {
	// URL is the Redis server holding the queues. Default: dataset.redis_url
	URL string `yaml:"url,omitempty" validate:"omitempty,url"`

	// Namespace prefixes all queue keys. Default: attackkb
	Namespace string `yaml:"namespace,omitempty"`

	// Concurrency is the number of calls processed in parallel. Default: 4
	Concurrency int `yaml:"concurrency,omitempty" validate:"gte=0"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// Format is text or json. Default: text
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// GetLoadTimeout returns the dataset load timeout or the default value.
func (d DatasetConfig) GetLoadTimeout() time.Duration {
	return durationOr(d.LoadTimeout, 2*time.Minute)
}

// GetPort returns the configured port or the default value.
func (s ServerConfig) GetPort() int {
	if s.Port <= 0 {
		return 50051
	}
	return s.Port
}

// GetGracefulTimeout returns the shutdown timeout or the default value.
func (s ServerConfig) GetGracefulTimeout() time.Duration {
	return durationOr(s.GracefulTimeout, 30*time.Second)
}

// GetCallTimeout returns the default call timeout or the default value.
func (s ServerConfig) GetCallTimeout() time.Duration {
	return durationOr(s.CallTimeout, 30*time.Second)
}

// GetRateLimit returns the rate limit. An explicit 0 disables limiting.
func (s ServerConfig) GetRateLimit() float64 {
	if s.RateLimit == nil {
		return 100
	}
	return *s.RateLimit
}

// GetRateBurst returns the burst size or the default value.
func (s ServerConfig) GetRateBurst() int {
	if s.RateBurst <= 0 {
		return 50
	}
	return s.RateBurst
}

// Enabled reports whether registration is configured.
func (r RegistryConfig) Enabled() bool {
	return len(r.Endpoints) > 0
}

// ToRegistry converts to the registry client configuration.
func (r RegistryConfig) ToRegistry() registry.Config {
	return registry.Config{
		Endpoints: r.Endpoints,
		Namespace: r.Namespace,
		TTL:       r.TTL,
	}
}

// GetQueueURL returns the queue Redis URL, falling back to the dataset's.
func (c Config) GetQueueURL() string {
	if c.Queue.URL != "" {
		return c.Queue.URL
	}
	return c.Dataset.RedisURL
}

// GetConcurrency returns the worker concurrency or the default value.
func (q QueueConfig) GetConcurrency() int {
	if q.Concurrency <= 0 {
		return 4
	}
	return q.Concurrency
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Parse decodes and validates configuration bytes. Unknown keys are an
// error.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Load reads and parses a configuration file from the given path.
// If the path is a directory, it looks for attack-kb.yaml or attack-kb.yml
// in that directory. Load does not validate; call Validate after applying
// overrides.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		configPath, err = findInDir(path)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	cfg.resolvePaths(filepath.Dir(configPath))
	return cfg, nil
}

func findInDir(dir string) (string, error) {
	for _, name := range []string{DefaultFileName, "attack-kb.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s or attack-kb.yml found in %s: %w", DefaultFileName, dir, os.ErrNotExist)
}

// LoadFromDir searches for attack-kb.yaml starting from dir and walking up
// to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		if _, err := findInDir(absDir); err == nil {
			return Load(absDir)
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			return nil, fmt.Errorf("no %s found in %s or parent directories: %w", DefaultFileName, dir, os.ErrNotExist)
		}
		absDir = parent
	}
}

// resolvePaths makes relative file paths relative to the config file.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Dataset.Path, &c.Server.TLSCertFile, &c.Server.TLSKeyFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}
