// Package registry registers serving attack-kb instances in etcd so that
// callers can discover a knowledge-base endpoint at runtime.
//
// Entries live under /{namespace}/{kind}/{name}/{instance-id} and are bound
// to an etcd lease. A running instance keeps its lease alive; when it exits or
// crashes the lease expires and the entry disappears.
package registry

import (
	"context"
	"time"
)

const (
	// DefaultNamespace is the etcd key prefix used when none is configured.
	DefaultNamespace = "attackkb"

	// DefaultTTL is the lease time-to-live in seconds.
	DefaultTTL = 30

	// EndpointsEnvVar holds a comma-separated list of etcd endpoints.
	EndpointsEnvVar = "ATTACKKB_REGISTRY_ENDPOINTS"

	// KindToolServer is the kind under which tool servers register.
	KindToolServer = "tool-server"
)

// ServiceInfo describes a registered service instance.
type ServiceInfo struct {
	// Kind identifies the component type (e.g., KindToolServer)
	Kind string `json:"kind"`

	// Name is the service name (e.g., "attack-kb")
	Name string `json:"name"`

	// Version is the served tool-set version
	Version string `json:"version"`

	// InstanceID is unique per running process (typically a UUID)
	InstanceID string `json:"instance_id"`

	// Endpoint is the network address where this instance can be reached.
	// Format: "host:port" for TCP, "unix:///path/to/socket" for Unix sockets
	Endpoint string `json:"endpoint"`

	// Metadata carries attributes such as the tool names and dataset counts
	Metadata map[string]string `json:"metadata,omitempty"`

	// StartedAt is the timestamp when this instance started
	StartedAt time.Time `json:"started_at"`
}

// Registrar is the registration side of the registry. The serve package
// depends on this interface so tests can substitute an in-memory fake.
type Registrar interface {
	// Register adds the instance and keeps it alive until Deregister or Close.
	Register(ctx context.Context, info ServiceInfo) error

	// Deregister removes the instance. Unknown instances are a no-op.
	Deregister(ctx context.Context, info ServiceInfo) error

	// Close stops keepalives and releases the connection.
	Close() error
}

// Config holds registry connection configuration.
type Config struct {
	// Endpoints is the list of etcd endpoints.
	// Format: ["host1:2379", "host2:2379"]
	Endpoints []string `yaml:"endpoints" json:"endpoints"`

	// Namespace is the etcd key prefix. Default: DefaultNamespace
	Namespace string `yaml:"namespace" json:"namespace"`

	// TTL is the lease time-to-live in seconds. Default: DefaultTTL
	TTL int `yaml:"ttl" json:"ttl"`

	// TLS enables mutual TLS to etcd when set and enabled.
	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// TLSConfig holds TLS certificate configuration for etcd.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
	CAFile   string `yaml:"ca_file" json:"ca_file"`
}

// withDefaults returns a copy of cfg with namespace and TTL filled in.
func (cfg Config) withDefaults() Config {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return cfg
}

// Key returns the etcd key for an instance.
//
// Format: /namespace/kind/name/instance-id
func Key(namespace, kind, name, instanceID string) string {
	return prefix(namespace, kind, name) + instanceID
}

func prefix(namespace, kind, name string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return "/" + namespace + "/" + kind + "/" + name + "/"
}
