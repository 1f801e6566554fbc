package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/attack-kb/registry"
	"github.com/zero-day-ai/attack-kb/serve"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port          int
		socket        string
		advertiseAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge-base tools over gRPC",
		Long: `Load the dataset once and serve the tools through the
attackkb.v1.ToolService gRPC service until interrupted. With registry
endpoints configured the instance registers itself in etcd.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("port") {
				a.cfg.Server.Port = port
			}
			if flags.Changed("socket") {
				a.cfg.Server.Socket = socket
			}
			if flags.Changed("advertise-addr") {
				a.cfg.Server.AdvertiseAddr = advertiseAddr
			}

			ctx := cmd.Context()
			tools, err := a.tools(ctx)
			if err != nil {
				return err
			}

			opts := a.serverOptions()
			if a.cfg.Registry.Enabled() {
				reg, err := registry.NewClient(a.cfg.Registry.ToRegistry(), registry.WithLogger(a.logger))
				if err != nil {
					a.logger.Warn("registry unavailable, serving unregistered", "error", err)
				} else {
					defer reg.Close()
					opts = append(opts, serve.WithRegistry(reg))
				}
			}

			return ignoreCanceled(serve.Run(ctx, tools, opts...))
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port (default 50051)")
	cmd.Flags().StringVar(&socket, "socket", "", "listen on a Unix socket instead of TCP")
	cmd.Flags().StringVar(&advertiseAddr, "advertise-addr", "", "address published in the registry")
	return cmd
}

func newStdioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the knowledge-base tools over stdin/stdout",
		Long: `Read one JSON request per line from stdin and write one JSON response per
line to stdout:

  {"id": "1", "tool": "query_technique", "arguments": {"technique_id": "T1059"}}
  {"id": "2", "method": "list_tools"}

Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tools, err := a.tools(ctx)
			if err != nil {
				return err
			}
			return ignoreCanceled(serve.RunStdio(ctx, tools, cmd.InOrStdin(), cmd.OutOrStdout(), a.serverOptions()...))
		},
	}
}

func (a *app) serverOptions() []serve.Option {
	s := a.cfg.Server
	opts := []serve.Option{
		serve.WithName(serve.DefaultName),
		serve.WithLogger(a.logger),
		serve.WithPort(s.GetPort()),
		serve.WithGracefulShutdown(s.GetGracefulTimeout()),
		serve.WithCallTimeout(s.GetCallTimeout()),
		serve.WithRateLimit(s.GetRateLimit(), s.GetRateBurst()),
	}
	if s.Socket != "" {
		opts = append(opts, serve.WithLocalMode(s.Socket))
	}
	if s.AdvertiseAddr != "" {
		opts = append(opts, serve.WithAdvertiseAddr(s.AdvertiseAddr))
	}
	if s.TLSCertFile != "" {
		opts = append(opts, serve.WithTLS(s.TLSCertFile, s.TLSKeyFile))
	}
	return opts
}

// ignoreCanceled treats an interrupted server as a clean exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
