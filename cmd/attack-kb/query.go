package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/zero-day-ai/attack-kb/toolset"
)

func newTechniqueCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "technique [technique-id]",
		Short: "Look up a technique by ID or search by name",
		Long: `Print the full record of a technique, or with --name the techniques
whose names contain the fragment. Exact name matches come first.`,
		Example: `  attack-kb technique T1059.001
  attack-kb technique --name phishing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := map[string]any{}
			if len(args) == 1 {
				input["technique_id"] = args[0]
			}
			if name != "" {
				input["tech_name"] = name
			}
			if len(input) == 0 {
				return errors.New("a technique ID or --name is required")
			}
			return a.execute(cmd.Context(), toolset.QueryTechnique, input)
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "technique name fragment")
	return cmd
}

func newMitigationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mitigations <technique-id>",
		Short: "List the mitigations of a technique",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), toolset.QueryMitigations, map[string]any{"technique_id": args[0]})
		},
	}
}

func newDetectionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "detections <technique-id>",
		Short: "List the detections of a technique",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), toolset.QueryDetections, map[string]any{"technique_id": args[0]})
		},
	}
}

func newTacticsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tactics",
		Short: "List all tactics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), toolset.ListTactics, map[string]any{})
		},
	}
}

func newTacticTechniquesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tactic-techniques <tactic-id>",
		Short: "List the techniques that belong to a tactic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), toolset.QueryTacticTechniques, map[string]any{"tactic_id": args[0]})
		},
	}
}
