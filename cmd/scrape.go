package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// newScrapeCmd creates the 'scrape' subcommand. It runs the full pipeline
// over every configured source, or over the codes passed as arguments.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [source codes]",
		Short: "Fetches, extracts and scores airline policies",
		Long: `Runs the scrape pipeline over the configured airline sources. With no
arguments every source is processed; passing IATA codes limits the run to
those airlines.`,
		RunE: runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, args []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := a.Logger()

	sources := a.Config().Sources
	if len(args) > 0 {
		sources, err = filterSources(sources, args)
		if err != nil {
			return err
		}
	}

	result, err := a.Pipeline().ScrapeAll(cmd.Context(), sources)
	if err != nil {
		return fmt.Errorf("scrape run: %w", err)
	}

	for code, srcErr := range result.Failed {
		logger.Warn("source failed", zap.String("source", code), zap.Error(srcErr))
	}
	logger.Info("scrape finished",
		zap.String("run_id", result.RunID),
		zap.Int("records", len(result.Records)),
		zap.Int("failed", len(result.Failed)),
	)
	return nil
}

func filterSources(sources []policy.Source, codes []string) ([]policy.Source, error) {
	byCode := make(map[string]policy.Source, len(sources))
	for _, src := range sources {
		byCode[strings.ToUpper(src.Code)] = src
	}
	out := make([]policy.Source, 0, len(codes))
	for _, code := range codes {
		src, ok := byCode[strings.ToUpper(code)]
		if !ok {
			return nil, fmt.Errorf("unknown source code %q", code)
		}
		out = append(out, src)
	}
	return out, nil
}
