// Package pipeline orchestrates the per-source lifecycle: fetch, extract,
// score, persist. Sources run sequentially so the per-host rate limits of the
// fetcher stay meaningful.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camilorv/aeropolicy/internal/extract"
	"github.com/camilorv/aeropolicy/internal/metrics"
	"github.com/camilorv/aeropolicy/internal/policy"
	"github.com/camilorv/aeropolicy/internal/report"
	"github.com/camilorv/aeropolicy/internal/score"
)

// Pipeline wires the stages together. One Pipeline serves many runs.
type Pipeline struct {
	fetcher   policy.Fetcher
	extractor *extract.Extractor
	scorer    *score.Scorer
	store     policy.PolicyStore
	clock     policy.Clock
	reportCfg report.Config
	logger    *zap.Logger
}

// New builds a pipeline from its stage implementations.
func New(
	fetcher policy.Fetcher,
	extractor *extract.Extractor,
	scorer *score.Scorer,
	store policy.PolicyStore,
	clock policy.Clock,
	reportCfg report.Config,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		extractor: extractor,
		scorer:    scorer,
		store:     store,
		clock:     clock,
		reportCfg: reportCfg,
		logger:    logger,
	}
}

// Result summarizes one run over a set of sources.
type Result struct {
	RunID   string
	Records []policy.Extracted
	// Failed maps source codes to the error that made them unavailable.
	Failed map[string]error
}

// ScrapeAll processes every source in order, collecting records from the ones
// that succeed. A source failure is recorded and the run continues; context
// cancellation stops the run before the next source starts.
func (p *Pipeline) ScrapeAll(ctx context.Context, sources []policy.Source) (Result, error) {
	result := Result{
		RunID:  uuid.NewString(),
		Failed: make(map[string]error),
	}
	p.logger.Info("run started",
		zap.String("run_id", result.RunID),
		zap.Int("sources", len(sources)),
	)

	var peerCosts []int
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("run canceled",
				zap.String("run_id", result.RunID),
				zap.String("next_source", src.Code),
			)
			return result, fmt.Errorf("run %s canceled: %w", result.RunID, err)
		}

		record, err := p.scrapeOne(ctx, src, result.RunID, peerCosts)
		if err != nil {
			result.Failed[src.Code] = err
			continue
		}
		if record.CostNameChangeDomesticCOP != nil {
			peerCosts = append(peerCosts, *record.CostNameChangeDomesticCOP)
		}
		result.Records = append(result.Records, record)
	}

	p.logger.Info("run finished",
		zap.String("run_id", result.RunID),
		zap.Int("records", len(result.Records)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

// ScrapeOne runs the full lifecycle for a single source.
func (p *Pipeline) ScrapeOne(ctx context.Context, src policy.Source) (policy.Extracted, error) {
	return p.scrapeOne(ctx, src, uuid.NewString(), nil)
}

func (p *Pipeline) scrapeOne(ctx context.Context, src policy.Source, runID string, peerCosts []int) (policy.Extracted, error) {
	logger := p.logger.With(
		zap.String("run_id", runID),
		zap.String("source", src.Code),
	)

	p.transition(logger, src, policy.StateFetching)
	fetched, err := p.fetcher.Fetch(ctx, src)
	if err != nil {
		p.transition(logger, src, policy.StateFetchFailed)
		p.finishState(src, policy.StateUnavailable)
		logger.Error("source unavailable", zap.Error(err))
		return policy.Extracted{}, &policy.UnavailableError{
			Code:   src.Code,
			Reason: string(policy.Classify(err)),
			Err:    err,
		}
	}

	var record policy.Extracted
	sctx := score.Context{Captcha: fetched.Captcha, PeerCostsCOP: peerCosts}

	if fetched.Captcha {
		// A challenge page yields no trustworthy fields. Persist a minimal
		// record so the run still surfaces the source for manual review.
		p.transition(logger, src, policy.StateCaptcha)
		logger.Warn("captcha detected, flagging for manual review")
		record = policy.Extracted{
			AirlineName: src.Name,
			AirlineCode: src.Code,
			SourceURL:   src.PolicyURL,
			ScrapedAt:   p.clock.Now(),
			ContentHash: fetched.Hash,
		}
	} else {
		p.transition(logger, src, policy.StateFetched)
		p.transition(logger, src, policy.StateExtracting)
		record = p.extractor.Extract(src, fetched, p.clock.Now())
		p.transition(logger, src, policy.StateExtracted)
	}

	p.transition(logger, src, policy.StateScoring)
	record.RunID = runID
	record = p.scorer.Score(record, sctx)
	metrics.ObserveRecordScored(record.ManualReview)

	final := policy.StateComplete
	if record.ManualReview {
		final = policy.StateFlagged
	}

	if err := p.store.Persist(ctx, record); err != nil {
		p.finishState(src, policy.StateUnavailable)
		logger.Error("persist failed", zap.Error(err))
		return policy.Extracted{}, &policy.UnavailableError{
			Code:   src.Code,
			Reason: "persist_failed",
			Err:    err,
		}
	}

	p.finishState(src, final)
	logger.Info("source processed",
		zap.String("state", string(final)),
		zap.Float64("confidence", record.Confidence),
		zap.Bool("manual_review", record.ManualReview),
		zap.Bool("content_changed", fetched.Changed),
	)
	return record, nil
}

// ComputeReport aggregates one run's records into a viability report.
func (p *Pipeline) ComputeReport(records []policy.Extracted) report.Report {
	return report.Compute(records, p.reportCfg)
}

// transition records an intermediate state change. Terminal states go through
// finishState so their log entry can carry the outcome fields.
func (p *Pipeline) transition(logger *zap.Logger, src policy.Source, state policy.State) {
	metrics.ObserveSourceState(src.Code, string(state))
	if !state.Terminal() {
		logger.Debug("state transition", zap.String("state", string(state)))
	}
}

func (p *Pipeline) finishState(src policy.Source, state policy.State) {
	metrics.ObserveSourceState(src.Code, string(state))
}

// Unavailable reports whether the error marks a source that could not be
// processed end to end.
func Unavailable(err error) bool {
	var ue *policy.UnavailableError
	return errors.As(err, &ue)
}
