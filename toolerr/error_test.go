package toolerr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/attack-kb/kberr"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  New("query_technique", "resolve", ErrCodeNotFound, "T9999 not found"),
			want: "query_technique [resolve/NOT_FOUND]: T9999 not found",
		},
		{
			name: "with cause",
			err:  New("list_tactics", "list", ErrCodeInternal, "internal error").WithCause(errors.New("boom")),
			want: "list_tactics [list/INTERNAL]: internal error: boom",
		},
		{
			name: "no message",
			err:  New("query_detections", "list", ErrCodeTimeout, ""),
			want: "query_detections [list/TIMEOUT]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Builders(t *testing.T) {
	cause := errors.New("underlying")
	hint := RecoveryHint{Strategy: StrategyRetry, Reason: "try again", Priority: 1}

	err := New("query_mitigations", "list", ErrCodeInvalidInput, "bad").
		WithCause(cause).
		WithDetails(map[string]any{"technique_id": ""}).
		WithClass(ErrorClassSemantic).
		WithHints(hint)

	assert.Equal(t, cause, err.Unwrap())
	assert.Equal(t, "", err.Details["technique_id"])
	assert.Equal(t, ErrorClassSemantic, err.Class)
	assert.Equal(t, []RecoveryHint{hint}, err.Hints)
	assert.True(t, errors.Is(err, cause))
}

func TestError_Is(t *testing.T) {
	err := New("query_technique", "resolve", ErrCodeNotFound, "missing")
	wrapped := fmt.Errorf("execute: %w", err)

	assert.True(t, errors.Is(wrapped, &Error{Code: ErrCodeNotFound}))
	assert.True(t, errors.Is(wrapped, &Error{Tool: "query_technique", Code: ErrCodeNotFound}))
	assert.False(t, errors.Is(wrapped, &Error{Code: ErrCodeInvalidInput}))
	assert.False(t, errors.Is(wrapped, &Error{Tool: "list_tactics"}))

	var te *Error
	require.True(t, errors.As(wrapped, &te))
	assert.Equal(t, "missing", te.Message)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    string
		class   ErrorClass
		message string
	}{
		{
			name:    "not found",
			err:     kberr.NotFound("query.ResolveByID", "T9999.999"),
			code:    ErrCodeNotFound,
			class:   ErrorClassPermanent,
			message: "T9999.999 not found",
		},
		{
			name:  "invalid argument",
			err:   kberr.InvalidArgument("query.Resolve", "technique ID or name is required"),
			code:  ErrCodeInvalidInput,
			class: ErrorClassSemantic,
		},
		{
			name:    "dataset malformed",
			err:     kberr.DatasetMalformed("stix.Decode", "file://x.json", nil),
			code:    ErrCodeDatasetMalformed,
			class:   ErrorClassInfrastructure,
			message: "knowledge base is unavailable",
		},
		{
			name:  "deadline",
			err:   fmt.Errorf("query: %w", context.DeadlineExceeded),
			code:  ErrCodeTimeout,
			class: ErrorClassTransient,
		},
		{
			name:  "canceled",
			err:   context.Canceled,
			code:  ErrCodeCanceled,
			class: ErrorClassTransient,
		},
		{
			name:    "unknown",
			err:     errors.New("something odd"),
			code:    ErrCodeInternal,
			class:   ErrorClassInfrastructure,
			message: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError("query_technique", "resolve", tt.err)
			require.NotNil(t, got)

			assert.Equal(t, "query_technique", got.Tool)
			assert.Equal(t, "resolve", got.Operation)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.class, got.Class)
			if tt.message != "" {
				assert.Equal(t, tt.message, got.Message)
			}
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}

func TestFromError_InvalidArgumentKeepsReason(t *testing.T) {
	got := FromError("query_technique", "resolve", kberr.InvalidArgument("query.Resolve", "technique ID or name is required"))
	assert.Contains(t, got.Message, "technique ID or name is required")
}

func TestFromError_PassesToolErrorsThrough(t *testing.T) {
	orig := New("serve", "execute", ErrCodeRateLimited, "slow down")
	got := FromError("query_technique", "resolve", fmt.Errorf("wrapped: %w", orig))
	assert.Same(t, orig, got)
}

func TestFromError_Nil(t *testing.T) {
	assert.Nil(t, FromError("query_technique", "resolve", nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, FromError("t", "op", context.DeadlineExceeded).Retryable())
	assert.False(t, FromError("t", "op", kberr.NotFound("op", "x")).Retryable())
}

func TestDefaultClassForCode(t *testing.T) {
	tests := map[string]ErrorClass{
		ErrCodeNotFound:         ErrorClassPermanent,
		ErrCodeInvalidInput:     ErrorClassSemantic,
		ErrCodeUnknownTool:      ErrorClassSemantic,
		ErrCodeDatasetMalformed: ErrorClassInfrastructure,
		ErrCodeInternal:         ErrorClassInfrastructure,
		ErrCodeTimeout:          ErrorClassTransient,
		ErrCodeRateLimited:      ErrorClassTransient,
		"SOMETHING_NEW":         ErrorClassTransient,
	}

	for code, want := range tests {
		assert.Equal(t, want, DefaultClassForCode(code), code)
	}
}
