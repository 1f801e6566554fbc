package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/toolerr"
	"go.opentelemetry.io/otel/trace"
)

// OpWork is the operation name on errors raised by the worker itself.
const OpWork = "queue.Work"

// Worker defaults.
const (
	DefaultConcurrency       = 4
	DefaultPollTimeout       = time.Second
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultCallTimeout       = 30 * time.Second
)

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets the number of items processed in parallel.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithPollTimeout sets how long a single BRPOP waits. Values below one
// second are rounded up by Redis.
func WithPollTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollTimeout = d
		}
	}
}

// WithHeartbeatInterval sets how often tool heartbeats are refreshed.
func WithHeartbeatInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.heartbeat = d
		}
	}
}

// WithCallTimeout bounds items that carry no timeout_ms.
func WithCallTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.callTimeout = d
		}
	}
}

// WithLogger sets the worker logger. If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Worker consumes the queues of every tool in a registry.
type Worker struct {
	client *RedisClient
	tools  *tool.Registry
	names  []string
	id     string

	concurrency int
	pollTimeout time.Duration
	heartbeat   time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewWorker creates a worker serving tools from client's queues.
func NewWorker(client *RedisClient, tools *tool.Registry, opts ...WorkerOption) (*Worker, error) {
	if client == nil {
		return nil, errors.New("queue client cannot be nil")
	}
	if tools == nil || tools.Len() == 0 {
		return nil, errors.New("tool registry cannot be empty")
	}

	w := &Worker{
		client:      client,
		tools:       tools,
		id:          uuid.NewString(),
		concurrency: DefaultConcurrency,
		pollTimeout: DefaultPollTimeout,
		heartbeat:   DefaultHeartbeatInterval,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "queue", "worker_id", w.id)

	for _, t := range tools.Tools() {
		w.names = append(w.names, t.Name())
	}
	return w, nil
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() string {
	return w.id
}

// Run registers the tools, then processes work items until ctx is done.
// It returns ctx.Err() after in-flight items have finished.
func (w *Worker) Run(ctx context.Context) error {
	counted, err := w.register(ctx)
	defer w.unregister(counted)
	if err != nil {
		return err
	}

	w.logger.Info("queue worker started",
		"tools", len(w.names),
		"concurrency", w.concurrency,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}

	wg.Wait()
	w.logger.Info("queue worker stopped")
	return ctx.Err()
}

// register publishes every tool and bumps its worker count. It returns the
// names whose count was incremented, also on error, so they can be undone.
func (w *Worker) register(ctx context.Context) ([]string, error) {
	var counted []string
	for _, d := range w.tools.Descriptors() {
		schema, err := json.Marshal(d.InputSchema)
		if err != nil {
			return counted, fmt.Errorf("failed to marshal input schema of %s: %w", d.Name, err)
		}
		meta := ToolMeta{
			Name:        d.Name,
			Version:     d.Version,
			Description: d.Description,
			InputSchema: string(schema),
			Tags:        d.Tags,
		}
		if err := w.client.RegisterTool(ctx, meta); err != nil {
			return counted, err
		}
		if err := w.client.IncrementWorkerCount(ctx, d.Name); err != nil {
			return counted, err
		}
		counted = append(counted, d.Name)
	}
	return counted, nil
}

func (w *Worker) unregister(names []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, name := range names {
		if err := w.client.DecrementWorkerCount(ctx, name); err != nil {
			w.logger.Warn("failed to decrement worker count", "tool", name, "error", err)
		}
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	beat := func() {
		for _, name := range w.names {
			if err := w.client.Heartbeat(ctx, name); err != nil && ctx.Err() == nil {
				w.logger.Warn("heartbeat failed", "tool", name, "error", err)
			}
		}
	}

	beat()
	ticker := time.NewTicker(w.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

func (w *Worker) loop(ctx context.Context) {
	for ctx.Err() == nil {
		item, err := w.client.Pop(ctx, w.pollTimeout, w.names...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("failed to pop work item", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollTimeout):
			}
			continue
		}
		if item == nil {
			continue
		}

		result := w.process(ctx, item)

		// Publish even when ctx is done so the submitter is not left waiting.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := w.client.Publish(pubCtx, result); err != nil {
			w.logger.Warn("failed to publish result", "job_id", item.JobID, "tool", item.Tool, "error", err)
		}
		cancel()
	}
}

// process executes one item. Failures are carried in the result.
func (w *Worker) process(ctx context.Context, item *WorkItem) Result {
	result := Result{
		JobID:     item.JobID,
		Index:     item.Index,
		Tool:      item.Tool,
		WorkerID:  w.id,
		StartedAt: time.Now().UnixMilli(),
	}

	if err := item.Validate(); err != nil {
		result.Error = toolerr.EnrichError(toolerr.New(item.Tool, OpWork, toolerr.ErrCodeInvalidInput, err.Error()))
		result.CompletedAt = time.Now().UnixMilli()
		return result
	}

	timeout := w.callTimeout
	if item.TimeoutMS > 0 {
		timeout = time.Duration(item.TimeoutMS) * time.Millisecond
	}
	callCtx, cancel := context.WithTimeout(withRemoteParent(ctx, item), timeout)
	defer cancel()

	output, err := w.tools.Execute(callCtx, item.Tool, item.Arguments)
	result.CompletedAt = time.Now().UnixMilli()
	if err != nil {
		result.Error = toolerr.FromError(item.Tool, OpWork, err)
		w.logger.Debug("work item failed",
			"job_id", item.JobID,
			"tool", item.Tool,
			"code", result.Error.Code,
		)
		return result
	}

	result.Output = output
	w.logger.Debug("work item completed",
		"job_id", item.JobID,
		"tool", item.Tool,
		"queued_ms", item.Age().Milliseconds(),
		"duration_ms", result.CompletedAt-result.StartedAt,
	)
	return result
}

// withRemoteParent makes the submitter's span the parent of spans started
// while executing item.
func withRemoteParent(ctx context.Context, item *WorkItem) context.Context {
	traceID, err := trace.TraceIDFromHex(item.TraceID)
	if err != nil {
		return ctx
	}
	spanID, err := trace.SpanIDFromHex(item.SpanID)
	if err != nil {
		return ctx
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}
