package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/attack-kb/health"
	"github.com/zero-day-ai/attack-kb/registry"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultName is the service name used for registration.
const DefaultName = "attack-kb"

// Config holds serve configuration.
type Config struct {
	// Name identifies the service in the registry.
	// Default: DefaultName
	Name string

	// Port is the TCP port on which the gRPC server listens.
	// Default: 50051
	Port int

	// LocalMode, when set, is a Unix socket path to listen on instead of TCP.
	LocalMode string

	// AdvertiseAddr is the address published in the registry. A bare host
	// gets the listening port appended. Default: localhost
	AdvertiseAddr string

	// GracefulTimeout is the maximum duration to wait for active requests
	// to complete during graceful shutdown.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// RateLimit is the sustained number of tool calls per second.
	// Zero or less disables limiting.
	// Default: 100
	RateLimit float64

	// RateBurst is the token bucket size. Default: 50
	RateBurst int

	// CallTimeout bounds calls that carry no timeout_ms of their own.
	// Zero means no default deadline.
	// Default: 30 seconds
	CallTimeout time.Duration

	// Registry, when set, receives a registration for the running server.
	Registry registry.Registrar

	// Logger receives server logs. Default: slog.Default()
	Logger *slog.Logger

	// Listener overrides Port and LocalMode. Used with bufconn in tests.
	Listener net.Listener
}

// DefaultConfig returns default serve configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:            DefaultName,
		Port:            50051,
		GracefulTimeout: 30 * time.Second,
		RateLimit:       100,
		RateBurst:       50,
		CallTimeout:     30 * time.Second,
		Logger:          slog.Default(),
	}
}

// Server wraps a gRPC server with lifecycle management.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	config       *Config
	healthServer *grpchealth.Server
	logger       *slog.Logger
	instanceID   string
	startedAt    time.Time
	tools        *tool.Registry
}

// NewServer creates a gRPC server with the health service registered.
// Call RegisterTools before Serve.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "serve")

	listener, err := listen(cfg)
	if err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(recoveryInterceptor(logger), loggingInterceptor(logger)),
	}

	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)

	healthServer := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer:   grpcServer,
		listener:     listener,
		config:       cfg,
		healthServer: healthServer,
		logger:       logger,
		instanceID:   uuid.NewString(),
		startedAt:    time.Now(),
	}, nil
}

func listen(cfg *Config) (net.Listener, error) {
	if cfg.Listener != nil {
		return cfg.Listener, nil
	}

	if cfg.LocalMode != "" {
		if err := os.Remove(cfg.LocalMode); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale socket %s: %w", cfg.LocalMode, err)
		}
		listener, err := net.Listen("unix", cfg.LocalMode)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on socket %s: %w", cfg.LocalMode, err)
		}
		if err := os.Chmod(cfg.LocalMode, 0o600); err != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to set socket permissions: %w", err)
		}
		return listener, nil
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
	}
	return listener, nil
}

// RegisterTools registers the ToolService for tools.
func (s *Server) RegisterTools(tools *tool.Registry) {
	s.tools = tools
	RegisterToolServiceServer(s.grpcServer, newToolService(tools, newDispatcher(tools, s.config, s.logger)))
}

// UpdateHealth runs every tool's health check and publishes the combined
// result on the gRPC health service, both for the empty service name and
// for ToolServiceName.
func (s *Server) UpdateHealth(ctx context.Context) types.HealthStatus {
	var checks []types.HealthStatus
	if s.tools != nil {
		for _, t := range s.tools.Tools() {
			checks = append(checks, t.Health(ctx))
		}
	}
	status := health.Combine(checks...)

	serving := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if status.Serving() {
		serving = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", serving)
	s.healthServer.SetServingStatus(ToolServiceName, serving)

	if !status.IsHealthy() {
		s.logger.Warn("tool server health", "status", string(status.Status), "message", status.Message)
	}
	return status
}

// GRPCServer returns the underlying gRPC server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HealthServer returns the health check server.
func (s *Server) HealthServer() *grpchealth.Server {
	return s.healthServer
}

// InstanceID returns the unique ID of this server instance.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Serve starts the gRPC server and blocks until shutdown.
// SIGINT and SIGTERM trigger a graceful stop and a nil return; canceling
// ctx triggers a graceful stop and returns ctx.Err().
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case sig := <-sigCh:
		s.logger.Info("received signal, shutting down", "signal", sig.String())
		s.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop immediately stops the gRPC server.
func (s *Server) Stop() {
	s.healthServer.Shutdown()
	s.grpcServer.Stop()
	s.cleanupSocket()
}

// GracefulStop stops accepting new connections and waits for active RPCs
// up to GracefulTimeout before forcing a stop.
func (s *Server) GracefulStop() {
	s.healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop", "timeout", s.config.GracefulTimeout)
		s.grpcServer.Stop()
	}
	s.cleanupSocket()
}

func (s *Server) cleanupSocket() {
	if s.config.LocalMode == "" || s.config.Listener != nil {
		return
	}
	if err := os.Remove(s.config.LocalMode); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove socket", "path", s.config.LocalMode, "error", err)
	}
}

// Port returns the port the server is listening on.
// This is useful when using port 0 to get an available port.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Endpoint returns the address published in the registry.
func (s *Server) Endpoint() string {
	switch {
	case s.config.LocalMode != "":
		return "unix://" + s.config.LocalMode
	case s.config.AdvertiseAddr != "":
		if strings.Contains(s.config.AdvertiseAddr, ":") {
			return s.config.AdvertiseAddr
		}
		return fmt.Sprintf("%s:%d", s.config.AdvertiseAddr, s.Port())
	default:
		return fmt.Sprintf("localhost:%d", s.Port())
	}
}

// ServiceInfo describes this instance for the registry.
func (s *Server) ServiceInfo() registry.ServiceInfo {
	metadata := map[string]string{}
	version := ""
	if s.tools != nil {
		names := make([]string, 0, s.tools.Len())
		for _, t := range s.tools.Tools() {
			names = append(names, t.Name())
			if version == "" {
				version = t.Version()
			}
		}
		metadata["tools"] = strings.Join(names, ",")
	}

	name := s.config.Name
	if name == "" {
		name = DefaultName
	}

	return registry.ServiceInfo{
		Kind:       registry.KindToolServer,
		Name:       name,
		Version:    version,
		InstanceID: s.instanceID,
		Endpoint:   s.Endpoint(),
		Metadata:   metadata,
		StartedAt:  s.startedAt,
	}
}

// Run serves tools over gRPC until ctx is canceled or a signal arrives.
// With a registry configured, the instance registers after the listener is
// up and deregisters on the way out; registration failures are logged and
// do not stop the server.
func Run(ctx context.Context, tools *tool.Registry, opts ...Option) error {
	if tools == nil {
		return errors.New("tool registry cannot be nil")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	srv, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	srv.RegisterTools(tools)
	srv.UpdateHealth(ctx)

	srv.logger.Info("tool server started",
		"name", cfg.Name,
		"instance_id", srv.InstanceID(),
		"endpoint", srv.Endpoint(),
		"tools", tools.Len(),
	)

	if cfg.Registry != nil {
		info := srv.ServiceInfo()
		if err := cfg.Registry.Register(ctx, info); err != nil {
			srv.logger.Warn("failed to register with registry", "endpoint", info.Endpoint, "error", err)
		} else {
			srv.logger.Info("registered with registry", "endpoint", info.Endpoint)
			defer func() {
				deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := cfg.Registry.Deregister(deregCtx, info); err != nil {
					srv.logger.Warn("failed to deregister from registry", "endpoint", info.Endpoint, "error", err)
				}
			}()
		}
	}

	return srv.Serve(ctx)
}
