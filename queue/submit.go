package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Call is one tool invocation in a batch.
type Call struct {
	Tool      string
	Arguments map[string]any

	// Timeout bounds the call on the worker; zero uses the worker default
	Timeout time.Duration
}

// Call runs a single tool through the queue and waits for its result.
func (c *RedisClient) Call(ctx context.Context, tool string, args map[string]any) (*Result, error) {
	results, err := c.Batch(ctx, []Call{{Tool: tool, Arguments: args}})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

// Batch submits calls as one job and waits until every result has arrived
// or ctx is done. Results are returned in call order.
func (c *RedisClient) Batch(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, errors.New("at least one call is required")
	}
	for i, call := range calls {
		if call.Tool == "" {
			return nil, fmt.Errorf("call %d: tool is required", i)
		}
	}

	jobID := uuid.NewString()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before pushing so no result is published into the void.
	ch, err := c.Subscribe(subCtx, jobID)
	if err != nil {
		return nil, err
	}

	sc := trace.SpanContextFromContext(ctx)
	now := time.Now().UnixMilli()
	for i, call := range calls {
		item := WorkItem{
			JobID:       jobID,
			Index:       i,
			Total:       len(calls),
			Tool:        call.Tool,
			Arguments:   call.Arguments,
			TimeoutMS:   call.Timeout.Milliseconds(),
			SubmittedAt: now,
		}
		if sc.IsValid() {
			item.TraceID = sc.TraceID().String()
			item.SpanID = sc.SpanID().String()
		}
		if err := c.Push(ctx, item); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(calls))
	seen := make([]bool, len(calls))
	remaining := len(calls)
	incomplete := func(err error) error {
		return fmt.Errorf("job %s: collected %d of %d results: %w", jobID, len(calls)-remaining, len(calls), err)
	}
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return nil, incomplete(ctx.Err())
		case res, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, incomplete(err)
				}
				return nil, incomplete(errors.New("result subscription closed"))
			}
			if res.Index < 0 || res.Index >= len(calls) || seen[res.Index] {
				continue
			}
			seen[res.Index] = true
			results[res.Index] = res
			remaining--
		}
	}
	return results, nil
}
