package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/zero-day-ai/attack-kb/registry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ATTACKKB_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with ATTACKKB_* environment variables:
//
//	ATTACKKB_DATASET_PATH              dataset.path
//	ATTACKKB_DATASET_REDIS_URL         dataset.redis_url
//	ATTACKKB_DATASET_REDIS_KEY         dataset.redis_key
//	ATTACKKB_DATASET_INCLUDE_INACTIVE  dataset.include_inactive
//	ATTACKKB_SERVER_PORT               server.port
//	ATTACKKB_SERVER_SOCKET             server.socket
//	ATTACKKB_SERVER_ADVERTISE_ADDR     server.advertise_addr
//	ATTACKKB_SERVER_RATE_LIMIT         server.rate_limit
//	ATTACKKB_REGISTRY_ENDPOINTS        registry.endpoints (comma-separated)
//	ATTACKKB_QUEUE_URL                 queue.url
//	ATTACKKB_QUEUE_CONCURRENCY         queue.concurrency
//	ATTACKKB_LOG_LEVEL                 log.level
//	ATTACKKB_LOG_FORMAT                log.format
//
// A nil lookup uses os.LookupEnv.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	str("DATASET_PATH", &c.Dataset.Path)
	str("DATASET_REDIS_URL", &c.Dataset.RedisURL)
	str("DATASET_REDIS_KEY", &c.Dataset.RedisKey)
	str("SERVER_SOCKET", &c.Server.Socket)
	str("SERVER_ADVERTISE_ADDR", &c.Server.AdvertiseAddr)
	str("QUEUE_URL", &c.Queue.URL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "DATASET_INCLUDE_INACTIVE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDATASET_INCLUDE_INACTIVE: %w", EnvPrefix, err)
		}
		c.Dataset.IncludeInactive = b
	}

	if v, ok := lookup(EnvPrefix + "SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sSERVER_PORT: %w", EnvPrefix, err)
		}
		c.Server.Port = port
	}

	if v, ok := lookup(EnvPrefix + "SERVER_RATE_LIMIT"); ok && v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSERVER_RATE_LIMIT: %w", EnvPrefix, err)
		}
		c.Server.RateLimit = &limit
	}

	if v, ok := lookup(EnvPrefix + "QUEUE_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sQUEUE_CONCURRENCY: %w", EnvPrefix, err)
		}
		c.Queue.Concurrency = n
	}

	if v, ok := lookup(registry.EndpointsEnvVar); ok && v != "" {
		c.Registry.Endpoints = registry.ParseEndpoints(v)
	}

	return nil
}
