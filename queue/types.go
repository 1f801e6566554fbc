package queue

import (
	"fmt"
	"time"

	"github.com/zero-day-ai/attack-kb/toolerr"
)

// WorkItem is one tool call submitted to a tool's queue.
type WorkItem struct {
	// JobID is a UUID that correlates all work items in a batch
	JobID string `json:"job_id"`

	// Index is the position of this item in the batch (0-based)
	Index int `json:"index"`

	// Total is the total number of items in the batch
	Total int `json:"total"`

	// Tool is the name of the tool to execute
	Tool string `json:"tool"`

	// Arguments is the tool input object
	Arguments map[string]any `json:"arguments,omitempty"`

	// TimeoutMS bounds the call; zero uses the worker default
	TimeoutMS int64 `json:"timeout_ms,omitempty"`

	// TraceID and SpanID carry the submitter's span so worker spans join
	// the same trace
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when work was submitted
	SubmittedAt int64 `json:"submitted_at"`
}

// Result is the outcome of a WorkItem, published on the job channel.
type Result struct {
	JobID string `json:"job_id"`
	Index int    `json:"index"`
	Tool  string `json:"tool"`

	// Output is the tool result; nil if Error is set
	Output map[string]any `json:"output,omitempty"`

	// Error is the structured tool error if the call failed
	Error *toolerr.Error `json:"error,omitempty"`

	// WorkerID identifies the worker that processed the item
	WorkerID string `json:"worker_id"`

	// StartedAt and CompletedAt are Unix timestamps in milliseconds
	StartedAt   int64 `json:"started_at"`
	CompletedAt int64 `json:"completed_at"`
}

// ToolMeta describes a tool served by the workers. It is stored as a Redis
// hash so callers can discover what the queues accept.
type ToolMeta struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	InputSchema string   `json:"input_schema"`
	Tags        []string `json:"tags"`

	// WorkerCount is the number of running workers, read from the workers
	// counter
	WorkerCount int `json:"worker_count"`
}

// Validate reports the first problem with w.
func (w *WorkItem) Validate() error {
	if w.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if w.Tool == "" {
		return fmt.Errorf("tool is required")
	}
	if w.Total < 1 {
		return fmt.Errorf("total must be at least 1, got %d", w.Total)
	}
	if w.Index < 0 || w.Index >= w.Total {
		return fmt.Errorf("index %d out of range for total %d", w.Index, w.Total)
	}
	if w.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must be non-negative, got %d", w.TimeoutMS)
	}
	return nil
}

// Age returns how long ago the item was submitted.
func (w *WorkItem) Age() time.Duration {
	if w.SubmittedAt == 0 {
		return 0
	}
	return time.Since(time.UnixMilli(w.SubmittedAt))
}

// Failed reports whether the call returned a tool error.
func (r *Result) Failed() bool {
	return r.Error != nil
}

// Duration returns the execution time of the call.
func (r *Result) Duration() time.Duration {
	if r.StartedAt == 0 || r.CompletedAt == 0 {
		return 0
	}
	return time.Duration(r.CompletedAt-r.StartedAt) * time.Millisecond
}
