package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fleetguard/pkg/api"
)

var (
	strict bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze [topology-file]",
		Short: "Score a topology and list its single points of failure",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAnalyze,
	}

	spofsCmd = &cobra.Command{
		Use:   "spofs [topology-file]",
		Short: "List the agents whose loss splits the fleet",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSPOFs,
	}

	suggestCmd = &cobra.Command{
		Use:     "suggest [topology-file]",
		Short:   "Propose topology edits that remove single points of failure",
		Aliases: []string{"optimize"},
		Args:    cobra.MaximumNArgs(1),
		RunE:    runSuggest,
	}
)

func init() {
	analyzeCmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 2 when thresholds are not met")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	t, err := loadTopology(args)
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(nil)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(cmd.Context(), t)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, renderResult(result))
	}

	if strict && !result.MeetsThresholds {
		return errThresholds
	}
	return nil
}

func runSPOFs(cmd *cobra.Command, args []string) error {
	t, err := loadTopology(args)
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(nil)
	if err != nil {
		return err
	}

	spofs, err := analyzer.DetectSPOFs(cmd.Context(), t)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, api.SPOFsResponse{SPOFs: spofs, Count: len(spofs)})
	}
	fmt.Fprint(out, renderSPOFs(spofs))
	return nil
}

func runSuggest(cmd *cobra.Command, args []string) error {
	t, err := loadTopology(args)
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(nil)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(cmd.Context(), t)
	if err != nil {
		return err
	}
	suggestions, err := analyzer.SuggestOptimizations(cmd.Context(), result, t)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, api.OptimizationsResponse{Optimizations: suggestions, Count: len(suggestions)})
	}
	fmt.Fprint(out, renderResult(result))
	fmt.Fprint(out, renderOptimizations(suggestions))
	return nil
}
