package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key when none is configured.
const DefaultNamespace = "attackkb"

// HeartbeatTTL is how long a heartbeat keeps a tool marked alive.
const HeartbeatTTL = 30 * time.Second

// Keys builds the Redis key names for a namespace.
type Keys struct {
	Namespace string
}

func (k Keys) join(parts ...string) string {
	ns := k.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	return strings.Join(append([]string{ns}, parts...), ":")
}

// Queue is the work list of a tool.
func (k Keys) Queue(tool string) string { return k.join("tool", tool, "queue") }

// Meta is the metadata hash of a tool.
func (k Keys) Meta(tool string) string { return k.join("tool", tool, "meta") }

// Health is the heartbeat key of a tool.
func (k Keys) Health(tool string) string { return k.join("tool", tool, "health") }

// Workers is the worker counter of a tool.
func (k Keys) Workers(tool string) string { return k.join("tool", tool, "workers") }

// Tools is the set of registered tool names.
func (k Keys) Tools() string { return k.join("tools") }

// Results is the pub/sub channel of a job.
func (k Keys) Results(jobID string) string { return k.join("results", jobID) }

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Namespace prefixes all keys. Default: DefaultNamespace
	Namespace string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient talks to the work queues. It is safe for concurrent use.
type RedisClient struct {
	client *redis.Client
	keys   Keys
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client, keys: Keys{Namespace: opts.Namespace}}, nil
}

// Keys returns the key builder of the client's namespace.
func (c *RedisClient) Keys() Keys {
	return c.keys
}

// Push appends a work item to its tool's queue.
func (c *RedisClient) Push(ctx context.Context, item WorkItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	queue := c.keys.Queue(item.Tool)
	if err := c.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}
	return nil
}

// Pop removes the oldest work item from the first non-empty queue of the
// given tools. It waits up to timeout (at least one second) and returns
// nil, nil when nothing arrived.
func (c *RedisClient) Pop(ctx context.Context, timeout time.Duration, tools ...string) (*WorkItem, error) {
	if len(tools) == 0 {
		return nil, errors.New("at least one tool is required")
	}
	queues := make([]string, len(tools))
	for i, t := range tools {
		queues[i] = c.keys.Queue(t)
	}

	// BRPOP returns [queue_name, value]
	result, err := c.client.BRPop(ctx, timeout, queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queues: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var item WorkItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work item from %s: %w", result[0], err)
	}
	return &item, nil
}

// Publish sends a result to its job channel.
func (c *RedisClient) Publish(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	channel := c.keys.Results(result.JobID)
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on a job channel. The returned channel is closed when
// ctx is done. Undecodable messages are dropped.
func (c *RedisClient) Subscribe(ctx context.Context, jobID string) (<-chan Result, error) {
	channel := c.keys.Results(jobID)
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	results := make(chan Result)

	go func() {
		defer close(results)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var result Result
				if err := json.Unmarshal([]byte(msg.Payload), &result); err != nil {
					continue
				}

				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return results, nil
}

// RegisterTool stores tool metadata and adds the tool to the registered set.
func (c *RedisClient) RegisterTool(ctx context.Context, meta ToolMeta) error {
	tagsJSON, err := json.Marshal(meta.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	// HSET values must be strings
	fields := map[string]any{
		"name":         meta.Name,
		"version":      meta.Version,
		"description":  meta.Description,
		"input_schema": meta.InputSchema,
		"tags":         string(tagsJSON),
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, c.keys.Meta(meta.Name), fields)
	pipe.SAdd(ctx, c.keys.Tools(), meta.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register tool %s: %w", meta.Name, err)
	}
	return nil
}

// ListTools returns the registered tools sorted by name, with their current
// worker counts. Tools with missing metadata are skipped.
func (c *RedisClient) ListTools(ctx context.Context) ([]ToolMeta, error) {
	names, err := c.client.SMembers(ctx, c.keys.Tools()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get registered tools: %w", err)
	}
	sort.Strings(names)

	tools := make([]ToolMeta, 0, len(names))
	for _, name := range names {
		fields, err := c.client.HGetAll(ctx, c.keys.Meta(name)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}

		meta := ToolMeta{
			Name:        fields["name"],
			Version:     fields["version"],
			Description: fields["description"],
			InputSchema: fields["input_schema"],
		}
		if tags, ok := fields["tags"]; ok {
			_ = json.Unmarshal([]byte(tags), &meta.Tags)
		}
		if count, err := c.WorkerCount(ctx, name); err == nil {
			meta.WorkerCount = count
		}
		tools = append(tools, meta)
	}
	return tools, nil
}

// Heartbeat marks a tool alive for HeartbeatTTL.
func (c *RedisClient) Heartbeat(ctx context.Context, tool string) error {
	if err := c.client.Set(ctx, c.keys.Health(tool), "ok", HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for tool %s: %w", tool, err)
	}
	return nil
}

// Alive reports whether a heartbeat for tool is current.
func (c *RedisClient) Alive(ctx context.Context, tool string) (bool, error) {
	n, err := c.client.Exists(ctx, c.keys.Health(tool)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read heartbeat for tool %s: %w", tool, err)
	}
	return n == 1, nil
}

// WorkerCount returns the number of running workers for a tool.
func (c *RedisClient) WorkerCount(ctx context.Context, tool string) (int, error) {
	s, err := c.client.Get(ctx, c.keys.Workers(tool)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get worker count for tool %s: %w", tool, err)
	}

	count, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}
	return count, nil
}

// IncrementWorkerCount increments the worker count for a tool.
func (c *RedisClient) IncrementWorkerCount(ctx context.Context, tool string) error {
	if err := c.client.Incr(ctx, c.keys.Workers(tool)).Err(); err != nil {
		return fmt.Errorf("failed to increment worker count for tool %s: %w", tool, err)
	}
	return nil
}

// DecrementWorkerCount decrements the worker count for a tool.
func (c *RedisClient) DecrementWorkerCount(ctx context.Context, tool string) error {
	if err := c.client.Decr(ctx, c.keys.Workers(tool)).Err(); err != nil {
		return fmt.Errorf("failed to decrement worker count for tool %s: %w", tool, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
