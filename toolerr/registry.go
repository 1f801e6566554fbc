package toolerr

import (
	"sync"
)

// AnyTool is the tool name under which fallback hints are registered.
const AnyTool = "*"

// RecoveryRegistry stores recovery hints per tool and error code.
//
// The registry is a nested map:
//
//	tool -> errorCode -> []RecoveryHint
type RecoveryRegistry struct {
	mu       sync.RWMutex
	registry map[string]map[string][]RecoveryHint
}

// NewRecoveryRegistry creates an empty registry.
func NewRecoveryRegistry() *RecoveryRegistry {
	return &RecoveryRegistry{
		registry: make(map[string]map[string][]RecoveryHint),
	}
}

// globalRegistry backs Register, GetHints and EnrichError.
var globalRegistry = NewRecoveryRegistry()

// Register replaces the hints for a tool's error code.
func (r *RecoveryRegistry) Register(tool, errorCode string, hints ...RecoveryHint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registry[tool] == nil {
		r.registry[tool] = make(map[string][]RecoveryHint)
	}
	r.registry[tool][errorCode] = hints
}

// Hints returns the hints registered for a tool's error code, falling back
// to the AnyTool hints for that code. It returns nil when neither exists.
func (r *RecoveryRegistry) Hints(tool, errorCode string) []RecoveryHint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range []string{tool, AnyTool} {
		if hints, ok := r.registry[name][errorCode]; ok {
			out := make([]RecoveryHint, len(hints))
			copy(out, hints)
			return out
		}
	}
	return nil
}

// Register adds hints to the package registry.
//
// Example:
//
//	toolerr.Register("query_mitigations", toolerr.ErrCodeNotFound,
//	    toolerr.RecoveryHint{
//	        Strategy:    toolerr.StrategyUseAlternative,
//	        Alternative: "query_technique",
//	        Reason:      "search by name to find the technique ID",
//	        Confidence:  0.7,
//	        Priority:    1,
//	    },
//	)
func Register(tool, errorCode string, hints ...RecoveryHint) {
	globalRegistry.Register(tool, errorCode, hints...)
}

// GetHints returns hints from the package registry.
func GetHints(tool, errorCode string) []RecoveryHint {
	return globalRegistry.Hints(tool, errorCode)
}

// EnrichError sets a default class when none is set and appends the
// registered hints. It returns its argument.
func EnrichError(err *Error) *Error {
	if err == nil {
		return nil
	}

	if err.Class == "" {
		err.Class = DefaultClassForCode(err.Code)
	}

	if hints := GetHints(err.Tool, err.Code); len(hints) > 0 {
		err.Hints = append(err.Hints, hints...)
	}

	return err
}
