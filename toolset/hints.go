package toolset

import "github.com/zero-day-ai/attack-kb/toolerr"

func init() {
	toolerr.Register(QueryTechnique, toolerr.ErrCodeNotFound,
		toolerr.RecoveryHint{
			Strategy:   toolerr.StrategyModifyParams,
			Params:     map[string]any{"technique_id": nil, "tech_name": "<name fragment>"},
			Reason:     "the ID may be revoked or mistyped; a name search finds the current technique",
			Confidence: 0.7,
			Priority:   1,
		},
	)

	toolerr.Register(QueryTechnique, toolerr.ErrCodeInvalidInput,
		toolerr.RecoveryHint{
			Strategy:   toolerr.StrategyModifyParams,
			Params:     map[string]any{"technique_id": "T1059"},
			Reason:     "either technique_id or a non-blank tech_name is required",
			Confidence: 0.9,
			Priority:   1,
		},
	)

	for _, name := range []string{QueryMitigations, QueryDetections} {
		toolerr.Register(name, toolerr.ErrCodeNotFound,
			toolerr.RecoveryHint{
				Strategy:    toolerr.StrategyUseAlternative,
				Alternative: QueryTechnique,
				Reason:      "search by name to find a valid technique ID",
				Confidence:  0.7,
				Priority:    1,
			},
		)
	}

	toolerr.Register(QueryTacticTechniques, toolerr.ErrCodeNotFound,
		toolerr.RecoveryHint{
			Strategy:    toolerr.StrategyUseAlternative,
			Alternative: ListTactics,
			Reason:      "list_tactics returns every valid tactic ID",
			Confidence:  0.9,
			Priority:    1,
		},
	)
}
