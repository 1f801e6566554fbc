package serve

import (
	"log/slog"
	"net"
	"time"

	"github.com/zero-day-ai/attack-kb/registry"
)

// Option is a functional option for configuring a Server.
type Option func(*Config)

// WithName sets the service name published in the registry.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithPort sets the TCP port for the gRPC server.
// Use port 0 to automatically select an available port.
//
// Example:
//
//	serve.Run(ctx, tools, serve.WithPort(8080))
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithLocalMode listens on a Unix domain socket instead of TCP. The socket
// is created with 0600 permissions and removed on shutdown.
func WithLocalMode(socketPath string) Option {
	return func(c *Config) {
		c.LocalMode = socketPath
	}
}

// WithAdvertiseAddr sets the address published in the registry, for
// servers running behind NAT or in containers.
func WithAdvertiseAddr(addr string) Option {
	return func(c *Config) {
		c.AdvertiseAddr = addr
	}
}

// WithGracefulShutdown sets the maximum duration to wait for active
// requests to complete during graceful shutdown.
func WithGracefulShutdown(timeout time.Duration) Option {
	return func(c *Config) {
		c.GracefulTimeout = timeout
	}
}

// WithTLS enables TLS encryption for the gRPC server.
// If either path is empty, TLS will be disabled.
func WithTLS(certFile, keyFile string) Option {
	return func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	}
}

// WithRateLimit sets the token bucket applied to tool calls. A limit of
// zero or less disables rate limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.RateLimit = perSecond
		c.RateBurst = burst
	}
}

// WithCallTimeout sets the deadline applied to calls that do not carry
// timeout_ms.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = timeout
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithListener serves on an existing listener. Port and LocalMode are
// ignored.
func WithListener(lis net.Listener) Option {
	return func(c *Config) {
		c.Listener = lis
	}
}

// WithRegistry enables automatic service registration. The server
// registers after it starts listening and deregisters on shutdown.
//
// Example:
//
//	reg, _ := registry.NewClient(registry.Config{Endpoints: []string{"localhost:2379"}})
//	defer reg.Close()
//	serve.Run(ctx, tools, serve.WithRegistry(reg))
func WithRegistry(reg registry.Registrar) Option {
	return func(c *Config) {
		c.Registry = reg
	}
}

// WithRegistryFromEnv creates a registry client from the
// ATTACKKB_REGISTRY_ENDPOINTS environment variable. If the variable is not
// set, registration is skipped; if the connection fails, a warning is
// logged and the server runs unregistered.
func WithRegistryFromEnv() Option {
	return func(c *Config) {
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		client, err := registry.NewClientFromEnv(registry.WithLogger(logger))
		if err != nil {
			logger.Warn("registry unavailable, serving unregistered", "component", "serve", "error", err)
			return
		}
		if client != nil {
			c.Registry = client
		}
	}
}
