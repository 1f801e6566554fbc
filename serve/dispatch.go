package serve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/zero-day-ai/attack-kb/tool"
	"github.com/zero-day-ai/attack-kb/toolerr"
	"golang.org/x/time/rate"
)

// Request methods.
const (
	MethodExecute   = "execute"
	MethodListTools = "list_tools"
)

// OpDispatch is the operation name on errors raised before a tool runs.
const OpDispatch = "serve.Execute"

// Request is one call. Method defaults to MethodExecute.
type Request struct {
	ID        string         `json:"id,omitempty"`
	Method    string         `json:"method,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	TimeoutMS int64          `json:"timeout_ms,omitempty"`
}

// Response carries the outcome of a Request: Result or Error for an
// execute call, Tools for list_tools.
type Response struct {
	ID     string            `json:"id"`
	Tool   string            `json:"tool,omitempty"`
	Result map[string]any    `json:"result,omitempty"`
	Error  *toolerr.Error    `json:"error,omitempty"`
	Tools  []tool.Descriptor `json:"tools,omitempty"`
}

// dispatcher runs requests against a tool registry. It is shared by the
// gRPC and stdio transports.
type dispatcher struct {
	tools       *tool.Registry
	limiter     *rate.Limiter
	callTimeout time.Duration
	logger      *slog.Logger
}

func newDispatcher(tools *tool.Registry, cfg *Config, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		tools:       tools,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return d
}

func (d *dispatcher) handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, Tool: req.Tool}
	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}

	switch req.Method {
	case "", MethodExecute:
	case MethodListTools:
		resp.Tools = d.tools.Descriptors()
		return resp
	default:
		resp.Error = invalidRequest(req.Tool, fmt.Sprintf("unknown method %q", req.Method))
		return resp
	}

	if req.Tool == "" {
		resp.Error = invalidRequest("", "tool name is required")
		return resp
	}
	if req.TimeoutMS < 0 {
		resp.Error = invalidRequest(req.Tool, "timeout_ms cannot be negative")
		return resp
	}

	if d.limiter != nil && !d.limiter.Allow() {
		resp.Error = toolerr.EnrichError(
			toolerr.New(req.Tool, OpDispatch, toolerr.ErrCodeRateLimited, "request rate limit exceeded"),
		)
		d.logger.WarnContext(ctx, "tool call rejected", "tool", req.Tool, "request_id", resp.ID, "reason", "rate_limited")
		return resp
	}

	timeout := d.callTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := d.tools.Execute(ctx, req.Tool, req.Arguments)
	elapsed := time.Since(start)

	if err != nil {
		resp.Error = toolerr.FromError(req.Tool, OpDispatch, err)
		d.logger.DebugContext(ctx, "tool call failed",
			"tool", req.Tool,
			"request_id", resp.ID,
			"code", resp.Error.Code,
			"duration_ms", elapsed.Milliseconds(),
		)
		return resp
	}

	resp.Result = out
	d.logger.DebugContext(ctx, "tool call succeeded",
		"tool", req.Tool,
		"request_id", resp.ID,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp
}

func invalidRequest(toolName, message string) *toolerr.Error {
	return toolerr.EnrichError(toolerr.New(toolName, OpDispatch, toolerr.ErrCodeInvalidInput, message))
}
