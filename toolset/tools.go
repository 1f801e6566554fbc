package toolset

import (
	"context"

	"github.com/zero-day-ai/attack-kb/query"
	"github.com/zero-day-ai/attack-kb/schema"
	"github.com/zero-day-ai/attack-kb/tool"
)

var (
	techniqueIDArg = schema.StringWithDesc("ATT&CK technique ID, e.g. T1059.001 (case-insensitive)").
			WithMinLength(1).
			WithMaxLength(64)
	tacticIDArg = schema.StringWithDesc("ATT&CK tactic ID, e.g. TA0002 (case-insensitive)").
			WithMinLength(1).
			WithMaxLength(64)
)

// Summary is a name search hit.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Mitigation is a query_mitigations result entry.
type Mitigation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Detection is a query_detections result entry.
type Detection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Source      string `json:"source"`
}

// techniqueOutputSchema accepts either a technique record or a list of
// summaries.
func techniqueOutputSchema() schema.JSON {
	record := schema.FromType(query.Technique{})

	props := make(map[string]schema.JSON, len(record.Properties)+2)
	for k, v := range record.Properties {
		props[k] = v
	}
	props["results"] = schema.Array(schema.FromType(Summary{}))
	props["count"] = schema.Int()

	return schema.Object(props)
}

func (s *set) queryTechnique() *tool.Config {
	return tool.NewConfig().
		SetName(QueryTechnique).
		SetDescription("Look up an ATT&CK technique by ID, or search techniques by name. " +
			"technique_id takes precedence when both are given.").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"technique_id": techniqueIDArg,
			"tech_name":    schema.StringWithDesc("Name fragment, matched case-insensitively as a substring").WithMaxLength(256),
		}).Closed()).
		SetOutputSchema(techniqueOutputSchema()).
		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			id := stringArg(input, "technique_id")
			name := stringArg(input, "tech_name")

			res, err := s.engine.Resolve(ctx, id, name)
			if err != nil {
				return nil, err
			}

			if res.Technique != nil {
				s.logResult(ctx, QueryTechnique, 1, "technique_id", res.Technique.ID)
				return toMap(res.Technique)
			}

			summaries := make([]Summary, 0, len(res.Matches))
			for _, t := range res.Matches {
				summaries = append(summaries, Summary{
					ID:          t.ID,
					Name:        t.Name,
					Description: summarize(t.Description),
				})
			}
			s.logResult(ctx, QueryTechnique, len(summaries), "tech_name", name)
			return listResult(summaries)
		})
}

func (s *set) queryMitigations() *tool.Config {
	return tool.NewConfig().
		SetName(QueryMitigations).
		SetDescription("List the mitigations documented for an ATT&CK technique").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"technique_id": techniqueIDArg,
		}, "technique_id").Closed()).
		SetOutputSchema(listSchema(schema.FromType(Mitigation{}), nil)).
		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			id := stringArg(input, "technique_id")

			related, err := s.engine.Mitigations(ctx, id)
			if err != nil {
				return nil, err
			}

			out := make([]Mitigation, 0, len(related))
			for _, r := range related {
				out = append(out, Mitigation{ID: r.ID, Name: r.Name, Description: r.Description})
			}
			s.logResult(ctx, QueryMitigations, len(out), "technique_id", id)
			return listResult(out)
		})
}

func (s *set) queryDetections() *tool.Config {
	return tool.NewConfig().
		SetName(QueryDetections).
		SetDescription("List the detections (data components and strategies) for an ATT&CK technique").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"technique_id": techniqueIDArg,
		}, "technique_id").Closed()).
		SetOutputSchema(listSchema(schema.FromType(Detection{}), nil)).
		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			id := stringArg(input, "technique_id")

			related, err := s.engine.Detections(ctx, id)
			if err != nil {
				return nil, err
			}

			out := make([]Detection, 0, len(related))
			for _, r := range related {
				out = append(out, Detection{ID: r.ID, Name: r.Name, Description: r.Description, Source: r.Source})
			}
			s.logResult(ctx, QueryDetections, len(out), "technique_id", id)
			return listResult(out)
		})
}

func (s *set) listTactics() *tool.Config {
	return tool.NewConfig().
		SetName(ListTactics).
		SetDescription("List every ATT&CK tactic in matrix order").
		SetInputSchema(schema.Object(map[string]schema.JSON{}).Closed()).
		SetOutputSchema(listSchema(schema.FromType(query.Tactic{}), nil)).
		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			tactics := s.engine.ListTactics(ctx)
			s.logResult(ctx, ListTactics, len(tactics))
			return listResult(tactics)
		})
}

func (s *set) queryTacticTechniques() *tool.Config {
	return tool.NewConfig().
		SetName(QueryTacticTechniques).
		SetDescription("List the techniques and sub-techniques that belong to an ATT&CK tactic").
		SetInputSchema(schema.Object(map[string]schema.JSON{
			"tactic_id": tacticIDArg,
		}, "tactic_id").Closed()).
		SetOutputSchema(listSchema(schema.FromType(query.Ref{}), map[string]schema.JSON{
			"tactic_id": schema.String(),
		})).
		SetExecuteFunc(func(ctx context.Context, input map[string]any) (map[string]any, error) {
			id := stringArg(input, "tactic_id")

			tactic, refs, err := s.engine.TechniquesForTactic(ctx, id)
			if err != nil {
				return nil, err
			}

			out, err := listResult(refs)
			if err != nil {
				return nil, err
			}
			out["tactic_id"] = tactic.ID
			s.logResult(ctx, QueryTacticTechniques, len(refs), "tactic_id", tactic.ID)
			return out, nil
		})
}
