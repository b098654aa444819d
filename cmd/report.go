package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newReportCmd creates the 'report' subcommand. It scrapes every configured
// source and prints the aggregated viability report.
func newReportCmd() *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Scrapes all sources and prints the viability report",
		Long: `Runs the full scrape pipeline and aggregates the scored records into a
marketplace viability report: market coverage, cost statistics, the overall
viability score and a verdict with recommendations.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReportCommand(cmd, outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the JSON report to a file instead of stdout")
	return cmd
}

func runReportCommand(cmd *cobra.Command, outputPath string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := a.Logger()

	result, err := a.Pipeline().ScrapeAll(cmd.Context(), a.Config().Sources)
	if err != nil {
		return fmt.Errorf("scrape run: %w", err)
	}
	for code, srcErr := range result.Failed {
		logger.Warn("source failed", zap.String("source", code), zap.Error(srcErr))
	}

	rep := a.Pipeline().ComputeReport(result.Records)
	logger.Info("viability computed",
		zap.String("status", string(rep.Status)),
		zap.Float64("market_coverage", rep.MarketCoverage),
		zap.Float64("overall_score", rep.OverallScore),
	)

	encoded, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if outputPath != "" {
		if err := os.WriteFile(outputPath, encoded, 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logger.Info("report written", zap.String("path", outputPath))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
