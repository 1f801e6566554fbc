package toolerr

// Fallback hints for codes every tool can return. Tool specific hints are
// registered next to the tools.
func init() {
	Register(AnyTool, ErrCodeTimeout,
		RecoveryHint{
			Strategy:   StrategyRetry,
			Reason:     "queries are in-memory; a timeout usually means the server was briefly saturated",
			Confidence: 0.6,
			Priority:   1,
		},
	)

	Register(AnyTool, ErrCodeRateLimited,
		RecoveryHint{
			Strategy:   StrategyRetryWithBackoff,
			Reason:     "the request budget refills continuously",
			Confidence: 0.9,
			Priority:   1,
		},
	)

	Register(AnyTool, ErrCodeUnknownTool,
		RecoveryHint{
			Strategy:   StrategyModifyParams,
			Reason:     "ListTools returns the names the server accepts",
			Confidence: 0.8,
			Priority:   1,
		},
	)
}
