// Package fetcher implements the rate-limited policy page fetcher: randomized
// pre-request delay, exponential backoff on transient failures, user-agent
// rotation, captcha detection and snapshot persistence.
package fetcher

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/camilorv/aeropolicy/internal/metrics"
	"github.com/camilorv/aeropolicy/internal/policy"
)

// Config controls retry, backoff and rate-limit behavior.
type Config struct {
	// MinDelay/MaxDelay bound the uniform random pause applied before every
	// outbound request, including the first.
	MinDelay time.Duration
	MaxDelay time.Duration
	// MaxRetries is the total attempt budget per source.
	MaxRetries int
	// BackoffBase doubles per retry, capped at BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// UserAgents are rotated attempt-indexed, not randomly, so rotation is
	// reproducible in tests.
	UserAgents []string
}

// Pauser abstracts the context-aware sleeps between attempts.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// TimerPauser sleeps on a timer, waking early on context cancellation.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher retrieves one source's policy page. Retry state is stack-local per
// Fetch call; concurrent fetches share only the snapshot store.
type Fetcher struct {
	cfg       Config
	static    Retriever
	renderer  Retriever
	snapshots policy.SnapshotStore
	hasher    policy.Hasher
	clock     policy.Clock
	pauser    Pauser
	logger    *zap.Logger
}

// New constructs a Fetcher. The renderer may be nil when no script-capable
// collaborator is configured; sources flagged requires_javascript then fail
// as unavailable.
func New(
	cfg Config,
	static Retriever,
	renderer Retriever,
	snapshots policy.SnapshotStore,
	hasher policy.Hasher,
	clock policy.Clock,
	logger *zap.Logger,
) *Fetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = []string{"aeropolicy/1.0"}
	}
	return &Fetcher{
		cfg:       cfg,
		static:    static,
		renderer:  renderer,
		snapshots: snapshots,
		hasher:    hasher,
		clock:     clock,
		pauser:    TimerPauser{},
		logger:    logger,
	}
}

// WithPauser swaps the sleep implementation (tests).
func (f *Fetcher) WithPauser(p Pauser) *Fetcher {
	f.pauser = p
	return f
}

// Fetch retrieves src's policy page, retrying transient failures with
// exponential backoff. Captcha detection is terminal and returns the partial
// content; successful retrievals are snapshotted and compared against the
// previous capture.
func (f *Fetcher) Fetch(ctx context.Context, src policy.Source) (policy.FetchResult, error) {
	retriever, err := f.retrieverFor(src)
	if err != nil {
		return policy.FetchResult{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		delay := f.attemptDelay(attempt)
		if err := f.pauser.Pause(ctx, delay); err != nil {
			return policy.FetchResult{}, fmt.Errorf("fetch %s canceled: %w", src.Code, err)
		}

		userAgent := f.cfg.UserAgents[(attempt-1)%len(f.cfg.UserAgents)]
		start := f.clock.Now()
		body, attemptErr := retriever.Retrieve(ctx, src.PolicyURL, userAgent)
		elapsed := f.clock.Now().Sub(start)

		// Challenge walls often answer 403/503, so scan whatever body came
		// back, not only successful responses.
		if len(body) > 0 && DetectCaptcha(body) {
			attemptErr = policy.ErrCaptcha
		}
		outcome := policy.Classify(attemptErr)
		f.logAttempt(src, attempt, outcome, delay, elapsed, len(body), attemptErr)
		metrics.ObserveFetchAttempt(src.Code, string(outcome), delay)

		switch {
		case attemptErr == nil:
			return f.finalize(ctx, src, body)
		case errors.Is(attemptErr, policy.ErrCaptcha):
			return policy.FetchResult{Content: body, Captcha: true}, nil
		case policy.Retryable(attemptErr):
			lastErr = attemptErr
		default:
			return policy.FetchResult{}, attemptErr
		}
	}
	return policy.FetchResult{}, fmt.Errorf("exhausted %d attempts: %w", f.cfg.MaxRetries, lastErr)
}

// attemptDelay combines the always-applied random jitter with exponential
// backoff for retries. Backoff is monotonically non-decreasing per attempt.
func (f *Fetcher) attemptDelay(attempt int) time.Duration {
	delay := f.randomDelay()
	if attempt > 1 {
		delay += f.backoff(attempt)
	}
	return delay
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	backoff := f.cfg.BackoffBase
	for i := 2; i < attempt; i++ {
		backoff *= 2
		if f.cfg.BackoffMax > 0 && backoff >= f.cfg.BackoffMax {
			return f.cfg.BackoffMax
		}
	}
	if f.cfg.BackoffMax > 0 && backoff > f.cfg.BackoffMax {
		backoff = f.cfg.BackoffMax
	}
	return backoff
}

func (f *Fetcher) randomDelay() time.Duration {
	span := f.cfg.MaxDelay - f.cfg.MinDelay
	if span <= 0 {
		return f.cfg.MinDelay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)))
	if err != nil {
		return f.cfg.MinDelay + span/2
	}
	return f.cfg.MinDelay + time.Duration(n.Int64())
}

func (f *Fetcher) retrieverFor(src policy.Source) (Retriever, error) {
	if !src.RequiresJS {
		return f.static, nil
	}
	if f.renderer == nil {
		return nil, fmt.Errorf("source %s requires javascript rendering but no renderer is configured", src.Code)
	}
	return f.renderer, nil
}

// finalize hashes the content, persists a snapshot and reports whether the
// page changed since the previous capture. The snapshot is written only after
// the fetch fully succeeds.
func (f *Fetcher) finalize(ctx context.Context, src policy.Source, body []byte) (policy.FetchResult, error) {
	hash, err := f.hasher.Hash(body)
	if err != nil {
		return policy.FetchResult{}, fmt.Errorf("hash content: %w", err)
	}

	changed := true
	if prior, ok, lookErr := f.snapshots.LatestHash(ctx, src.Code); lookErr != nil {
		f.logger.Warn("snapshot lookup failed",
			zap.String("source", src.Code),
			zap.Error(lookErr),
		)
	} else if ok {
		changed = prior != hash
	}

	snap := policy.Snapshot{
		SourceCode: src.Code,
		CapturedAt: f.clock.Now(),
		Hash:       hash,
		Payload:    body,
	}
	if err := f.snapshots.Save(ctx, snap); err != nil {
		return policy.FetchResult{}, fmt.Errorf("save snapshot: %w", err)
	}

	if changed {
		f.logger.Info("policy content changed since last snapshot",
			zap.String("source", src.Code),
			zap.String("hash", hash),
		)
	}
	return policy.FetchResult{Content: body, Hash: hash, Changed: changed}, nil
}

func (f *Fetcher) logAttempt(
	src policy.Source,
	attempt int,
	outcome policy.FetchOutcome,
	delay, elapsed time.Duration,
	size int,
	err error,
) {
	fields := []zap.Field{
		zap.String("source", src.Code),
		zap.Int("attempt", attempt),
		zap.String("outcome", string(outcome)),
		zap.Duration("delay", delay),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", size),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
		f.logger.Warn("fetch attempt failed", fields...)
		return
	}
	f.logger.Debug("fetch attempt", fields...)
}
