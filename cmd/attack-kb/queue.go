package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	attackkb "github.com/zero-day-ai/attack-kb"
	"github.com/zero-day-ai/attack-kb/queue"
)

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Serve or call the tools through Redis work queues",
	}
	cmd.AddCommand(newQueueWorkerCmd(a), newQueueCallCmd(a), newQueueToolsCmd(a))
	return cmd
}

func (a *app) queueClient() (*queue.RedisClient, error) {
	url := a.cfg.GetQueueURL()
	if url == "" {
		return nil, errors.New("a queue Redis URL is required (queue.url, ATTACKKB_QUEUE_URL or dataset.redis_url)")
	}
	return queue.NewRedisClient(queue.RedisOptions{URL: url, Namespace: a.cfg.Queue.Namespace})
}

func newQueueWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Load the dataset and execute queued tool calls until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := a.queueClient()
			if err != nil {
				return err
			}
			defer attackkb.CloseWithLog(client, a.logger, "queue client")

			tools, err := a.tools(ctx)
			if err != nil {
				return err
			}

			worker, err := queue.NewWorker(client, tools,
				queue.WithConcurrency(a.cfg.Queue.GetConcurrency()),
				queue.WithCallTimeout(a.cfg.Server.GetCallTimeout()),
				queue.WithLogger(a.logger),
			)
			if err != nil {
				return err
			}
			return ignoreCanceled(worker.Run(ctx))
		},
	}
}

func newQueueCallCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "call <tool> [arguments-json]",
		Short: "Submit one tool call to the queue and print its result",
		Example: `  attack-kb queue call query_technique '{"technique_id": "T1059"}'
  attack-kb queue call list_tactics`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arguments := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &arguments); err != nil {
					return fmt.Errorf("arguments must be a JSON object: %w", err)
				}
			}

			client, err := a.queueClient()
			if err != nil {
				return err
			}
			defer attackkb.CloseWithLog(client, a.logger, "queue client")

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := client.Call(ctx, args[0], arguments)
			if err != nil {
				return err
			}
			if err := a.print(res); err != nil {
				return err
			}
			if res.Failed() {
				return res.Error
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for a worker")
	return cmd
}

func newQueueToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools registered by queue workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.queueClient()
			if err != nil {
				return err
			}
			defer attackkb.CloseWithLog(client, a.logger, "queue client")

			tools, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(map[string]any{
				"tools": tools,
				"count": len(tools),
			})
		},
	}
}
