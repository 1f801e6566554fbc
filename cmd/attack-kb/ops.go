package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	attackkb "github.com/zero-day-ai/attack-kb"
	"github.com/zero-day-ai/attack-kb/health"
	"github.com/zero-day-ai/attack-kb/index"
	"github.com/zero-day-ai/attack-kb/registry"
	"github.com/zero-day-ai/attack-kb/serve"
	"github.com/zero-day-ai/attack-kb/stix"
	"github.com/zero-day-ai/attack-kb/toolset"
	"github.com/zero-day-ai/attack-kb/types"
)

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the tool descriptors and their JSON schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Descriptors do not depend on the dataset.
			kb, err := attackkb.FromBundle(&stix.Bundle{}, attackkb.WithLogger(a.logger))
			if err != nil {
				return err
			}
			tools, err := kb.Tools(toolset.WithLogger(a.logger))
			if err != nil {
				return err
			}
			return a.print(map[string]any{
				"tools": tools.Descriptors(),
				"count": tools.Len(),
			})
		},
	}
}

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect or publish the ATT&CK dataset",
	}
	cmd.AddCommand(newDatasetPushCmd(a), newDatasetStatsCmd(a))
	return cmd
}

func newDatasetPushCmd(a *app) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "push <bundle-file>",
		Short: "Publish a bundle file to Redis",
		Long: `Decode the bundle to make sure it is usable, then store the file bytes
unchanged (compressed files stay compressed) under the configured Redis key.
Servers started with dataset.redis_url load this snapshot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Dataset.RedisURL == "" {
				return errors.New("a Redis URL is required (--redis-url or dataset.redis_url)")
			}
			if key == "" {
				key = a.cfg.Dataset.RedisKey
			}

			ctx := cmd.Context()
			path := args[0]
			bundle, err := stix.Load(ctx, stix.FileSource{Path: path})
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			src, err := stix.NewRedisSource(stix.RedisOptions{URL: a.cfg.Dataset.RedisURL, Key: key})
			if err != nil {
				return err
			}
			defer attackkb.CloseWithLog(src, a.logger, "redis source")

			if err := src.Publish(ctx, data); err != nil {
				return err
			}
			a.logger.Info("dataset published",
				"component", "cli",
				"source", src.String(),
				"bytes", len(data),
				"objects", len(bundle.Objects),
			)
			return a.print(map[string]any{
				"key":     src.Key(),
				"bytes":   len(data),
				"objects": len(bundle.Objects),
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "Redis key (default: dataset.redis_key or "+stix.DefaultRedisKey+")")
	return cmd
}

func newDatasetStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the dataset and print index diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d := kb.Diagnostics()
			return a.print(map[string]any{
				"source":        kb.Source(),
				"objects":       d.Objects,
				"undecodable":   d.Undecodable,
				"techniques":    d.Entities[index.KindTechnique],
				"tactics":       d.Entities[index.KindTactic],
				"mitigations":   d.Entities[index.KindMitigation],
				"detections":    d.Entities[index.KindDetection],
				"relationships": d.Relationships,
				"skipped":       d.Skipped,
				"inactive":      d.Inactive,
				"duplicates":    d.Duplicates,
				"dangling_refs": d.DanglingRefs,
			})
		},
	}
}

func newInstancesCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List tool servers registered in etcd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Registry.Enabled() {
				return fmt.Errorf("no registry endpoints configured (registry.endpoints or %s)", registry.EndpointsEnvVar)
			}
			reg, err := registry.NewClient(a.cfg.Registry.ToRegistry(), registry.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer attackkb.CloseWithLog(reg, a.logger, "registry client")

			instances, err := reg.Discover(cmd.Context(), registry.KindToolServer, name)
			if err != nil {
				return err
			}
			return a.print(map[string]any{
				"instances": instances,
				"count":     len(instances),
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", serve.DefaultName, "service name")
	return cmd
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the dataset, its dependencies and the built index",
		Long: `Check that the dataset source is reachable, that configured registry
endpoints accept connections and that the loaded index can serve queries.
Exits non-zero when the combined status is unhealthy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status := a.health(cmd.Context())
			if err := a.print(status); err != nil {
				return err
			}
			if !status.Serving() {
				return fmt.Errorf("unhealthy: %s", status.Message)
			}
			return nil
		},
	}
}

func (a *app) health(ctx context.Context) types.HealthStatus {
	var checks []types.HealthStatus

	if a.cfg.Dataset.RedisURL != "" {
		checks = append(checks, redisCheck(ctx, a.cfg.Dataset.RedisURL))
	} else if a.cfg.Dataset.Path != "" {
		checks = append(checks, health.FileCheck(a.cfg.Dataset.Path))
	}
	for _, ep := range a.cfg.Registry.Endpoints {
		checks = append(checks, health.NetworkCheck(ctx, ep))
	}

	kb, err := a.open(ctx)
	if err != nil {
		checks = append(checks, types.NewUnhealthyStatus("dataset failed to load", map[string]any{"error": err.Error()}))
	} else {
		checks = append(checks, kb.Health())
	}
	return health.Combine(checks...)
}

func redisCheck(ctx context.Context, rawURL string) types.HealthStatus {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return types.NewUnhealthyStatus(fmt.Sprintf("invalid redis url %q", rawURL), nil)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":6379"
	}
	return health.NetworkCheck(ctx, host)
}
