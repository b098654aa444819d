package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	sha "github.com/camilorv/aeropolicy/internal/hash/sha256"
	"github.com/camilorv/aeropolicy/internal/policy"
	snapmem "github.com/camilorv/aeropolicy/internal/snapshot/memory"
)

type scriptedAttempt struct {
	body []byte
	err  error
}

// scriptedRetriever replays a fixed sequence of attempt results and records
// the user agent used for each one.
type scriptedRetriever struct {
	attempts   []scriptedAttempt
	calls      int
	userAgents []string
}

func (r *scriptedRetriever) Retrieve(_ context.Context, _ string, userAgent string) ([]byte, error) {
	r.userAgents = append(r.userAgents, userAgent)
	i := r.calls
	if i >= len(r.attempts) {
		i = len(r.attempts) - 1
	}
	r.calls++
	a := r.attempts[i]
	return a.body, a.err
}

// recordingPauser captures the requested delays without sleeping.
type recordingPauser struct {
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) error {
	p.delays = append(p.delays, delay)
	return nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func testConfig() Config {
	return Config{
		MinDelay:    0,
		MaxDelay:    0,
		MaxRetries:  3,
		BackoffBase: 2 * time.Second,
		BackoffMax:  30 * time.Second,
		UserAgents:  []string{"ua-one", "ua-two"},
	}
}

func newTestFetcher(cfg Config, retriever Retriever, snaps policy.SnapshotStore) (*Fetcher, *recordingPauser) {
	pauser := &recordingPauser{}
	f := New(cfg, retriever, nil, snaps,
		sha.New(),
		fixedClock{at: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
		zap.NewNop(),
	).WithPauser(pauser)
	return f, pauser
}

func testSource() policy.Source {
	return policy.Source{Code: "AV", Name: "Avianca", PolicyURL: "https://example.com/politicas"}
}

func TestFetchSuccessSavesSnapshot(t *testing.T) {
	t.Parallel()

	snaps := snapmem.New()
	retriever := &scriptedRetriever{attempts: []scriptedAttempt{{body: []byte("<html>ok</html>")}}}
	f, _ := newTestFetcher(testConfig(), retriever, snaps)

	result, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)

	assert.Equal(t, []byte("<html>ok</html>"), result.Content)
	assert.NotEmpty(t, result.Hash)
	assert.True(t, result.Changed)
	assert.False(t, result.Captcha)
	assert.Equal(t, 1, snaps.Count("AV"))
}

func TestFetchChangeDetection(t *testing.T) {
	t.Parallel()

	snaps := snapmem.New()

	first := &scriptedRetriever{attempts: []scriptedAttempt{{body: []byte("contenido v1")}}}
	f, _ := newTestFetcher(testConfig(), first, snaps)
	r1, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)
	assert.True(t, r1.Changed)

	// Same content again: hash matches the stored snapshot.
	same := &scriptedRetriever{attempts: []scriptedAttempt{{body: []byte("contenido v1")}}}
	f, _ = newTestFetcher(testConfig(), same, snaps)
	r2, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)
	assert.False(t, r2.Changed)

	changed := &scriptedRetriever{attempts: []scriptedAttempt{{body: []byte("contenido v2")}}}
	f, _ = newTestFetcher(testConfig(), changed, snaps)
	r3, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)
	assert.True(t, r3.Changed)

	assert.Equal(t, 3, snaps.Count("AV"))
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	netErr := errors.New("connection reset")
	retriever := &scriptedRetriever{attempts: []scriptedAttempt{{err: netErr}}}
	f, _ := newTestFetcher(testConfig(), retriever, snapmem.New())

	_, err := f.Fetch(context.Background(), testSource())
	require.Error(t, err)
	assert.ErrorIs(t, err, netErr)
	// Attempt budget is total attempts, not extra retries.
	assert.Equal(t, 3, retriever.calls)
}

func TestFetchRecoversWithinBudget(t *testing.T) {
	t.Parallel()

	retriever := &scriptedRetriever{attempts: []scriptedAttempt{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{body: []byte("recuperado")},
	}}
	f, _ := newTestFetcher(testConfig(), retriever, snapmem.New())

	result, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)
	assert.Equal(t, []byte("recuperado"), result.Content)
	assert.Equal(t, 3, retriever.calls)
}

func TestFetchBackoffGrows(t *testing.T) {
	t.Parallel()

	retriever := &scriptedRetriever{attempts: []scriptedAttempt{{err: errors.New("boom")}}}
	f, pauser := newTestFetcher(testConfig(), retriever, snapmem.New())

	_, err := f.Fetch(context.Background(), testSource())
	require.Error(t, err)

	// With min/max delay at zero, pauses are pure backoff: 0, base, 2*base.
	require.Len(t, pauser.delays, 3)
	assert.Equal(t, time.Duration(0), pauser.delays[0])
	assert.Equal(t, 2*time.Second, pauser.delays[1])
	assert.Equal(t, 4*time.Second, pauser.delays[2])
}

func TestFetchBackoffCapped(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxRetries = 6
	cfg.BackoffMax = 5 * time.Second
	retriever := &scriptedRetriever{attempts: []scriptedAttempt{{err: errors.New("boom")}}}
	f, pauser := newTestFetcher(cfg, retriever, snapmem.New())

	_, err := f.Fetch(context.Background(), testSource())
	require.Error(t, err)

	require.Len(t, pauser.delays, 6)
	for _, d := range pauser.delays[1:] {
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	assert.Equal(t, 5*time.Second, pauser.delays[5])
}

func TestFetchUserAgentRotation(t *testing.T) {
	t.Parallel()

	retriever := &scriptedRetriever{attempts: []scriptedAttempt{{err: errors.New("boom")}}}
	f, _ := newTestFetcher(testConfig(), retriever, snapmem.New())

	_, _ = f.Fetch(context.Background(), testSource())

	assert.Equal(t, []string{"ua-one", "ua-two", "ua-one"}, retriever.userAgents)
}

func TestFetchCaptchaTerminal(t *testing.T) {
	t.Parallel()

	snaps := snapmem.New()
	retriever := &scriptedRetriever{attempts: []scriptedAttempt{
		{body: []byte(`<div class="g-recaptcha">verifique</div>`)},
	}}
	f, _ := newTestFetcher(testConfig(), retriever, snaps)

	result, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)

	assert.True(t, result.Captcha)
	assert.NotEmpty(t, result.Content)
	// No second attempt and no snapshot of challenge content.
	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, 0, snaps.Count("AV"))
}

func TestFetchCaptchaOnErrorStatusBody(t *testing.T) {
	t.Parallel()

	retriever := &scriptedRetriever{attempts: []scriptedAttempt{
		{body: []byte("cf-browser-verification"), err: &policy.HTTPStatusError{Code: 503}},
	}}
	f, _ := newTestFetcher(testConfig(), retriever, snapmem.New())

	result, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)
	assert.True(t, result.Captcha)
	assert.Equal(t, 1, retriever.calls)
}

func TestFetchTerminalClientError(t *testing.T) {
	t.Parallel()

	retriever := &scriptedRetriever{attempts: []scriptedAttempt{
		{err: &policy.HTTPStatusError{Code: 404}},
	}}
	f, _ := newTestFetcher(testConfig(), retriever, snapmem.New())

	_, err := f.Fetch(context.Background(), testSource())
	require.Error(t, err)

	var httpErr *policy.HTTPStatusError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 404, httpErr.Code)
	assert.Equal(t, 1, retriever.calls)
}

func TestFetchRetryableServerError(t *testing.T) {
	t.Parallel()

	retriever := &scriptedRetriever{attempts: []scriptedAttempt{
		{err: &policy.HTTPStatusError{Code: 503}},
		{body: []byte("de vuelta")},
	}}
	f, _ := newTestFetcher(testConfig(), retriever, snapmem.New())

	result, err := f.Fetch(context.Background(), testSource())
	require.NoError(t, err)
	assert.Equal(t, []byte("de vuelta"), result.Content)
	assert.Equal(t, 2, retriever.calls)
}

func TestFetchJavascriptSourceWithoutRenderer(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(testConfig(), &scriptedRetriever{attempts: []scriptedAttempt{{}}}, snapmem.New())

	src := testSource()
	src.RequiresJS = true
	_, err := f.Fetch(context.Background(), src)
	assert.Error(t, err)
}

func TestFetchCanceledDuringPause(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.MinDelay = time.Second
	cfg.MaxDelay = time.Second
	retriever := &scriptedRetriever{attempts: []scriptedAttempt{{body: []byte("nunca")}}}

	f := New(cfg, retriever, nil, snapmem.New(), sha.New(),
		fixedClock{at: time.Now()}, zap.NewNop())

	_, err := f.Fetch(ctx, testSource())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, retriever.calls)
}
