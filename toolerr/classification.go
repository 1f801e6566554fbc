package toolerr

// ErrorClass categorizes errors by their nature so callers can decide how to
// react without parsing messages.
type ErrorClass string

const (
	// ErrorClassInfrastructure indicates environment or setup issues
	// Examples: dataset missing or corrupt
	ErrorClassInfrastructure ErrorClass = "infrastructure"

	// ErrorClassSemantic indicates input issues
	// Examples: missing arguments, unknown tool names
	ErrorClassSemantic ErrorClass = "semantic"

	// ErrorClassTransient indicates temporary failures that may resolve
	// Examples: deadlines, rate limits
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent indicates the same call will always fail
	// Examples: the technique does not exist in the dataset
	ErrorClassPermanent ErrorClass = "permanent"
)

// RecoveryStrategy defines the type of recovery action that can be attempted.
type RecoveryStrategy string

const (
	// StrategyRetry indicates the operation should be retried as-is
	StrategyRetry RecoveryStrategy = "retry"

	// StrategyRetryWithBackoff indicates retry with exponential backoff
	StrategyRetryWithBackoff RecoveryStrategy = "retry_with_backoff"

	// StrategyModifyParams indicates changing parameters may help
	StrategyModifyParams RecoveryStrategy = "modify_params"

	// StrategyUseAlternative indicates a different tool may answer the question
	StrategyUseAlternative RecoveryStrategy = "use_alternative_tool"

	// StrategySkip indicates the operation can be safely skipped
	StrategySkip RecoveryStrategy = "skip"
)

// RecoveryHint is a concrete suggestion for recovering from an error.
type RecoveryHint struct {
	// Strategy indicates the type of recovery action
	Strategy RecoveryStrategy `json:"strategy"`

	// Alternative names the tool to use with StrategyUseAlternative
	Alternative string `json:"alternative,omitempty"`

	// Params contains suggested arguments for StrategyModifyParams
	Params map[string]any `json:"params,omitempty"`

	// Reason explains why this approach might succeed
	Reason string `json:"reason"`

	// Confidence indicates the likelihood of success (0.0 to 1.0)
	Confidence float64 `json:"confidence"`

	// Priority determines the order to try hints (lower = try first)
	Priority int `json:"priority"`
}

// DefaultClassForCode returns the default error class for a code.
func DefaultClassForCode(code string) ErrorClass {
	switch code {
	case ErrCodeInvalidInput, ErrCodeUnknownTool:
		return ErrorClassSemantic
	case ErrCodeNotFound:
		return ErrorClassPermanent
	case ErrCodeDatasetMalformed, ErrCodeInternal:
		return ErrorClassInfrastructure
	case ErrCodeTimeout, ErrCodeRateLimited, ErrCodeCanceled:
		return ErrorClassTransient
	default:
		return ErrorClassTransient
	}
}
