// Package headless renders javascript-heavy policy pages with a real browser.
package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Config controls the chromedp renderer.
type Config struct {
	// NavigationTimeout bounds a single page load including script settle.
	NavigationTimeout time.Duration
	// QPS throttles navigations across all sources sharing this renderer.
	// Zero disables throttling.
	QPS float64
	// SettleDelay waits after body-ready so late scripts can populate the DOM.
	SettleDelay time.Duration
}

// Renderer implements the fetcher retriever contract with headless Chrome.
// Each Retrieve runs in a fresh browser tab so cookies and script state never
// leak between sources.
type Renderer struct {
	cfg         Config
	limiter     *rate.Limiter
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New starts a Chrome exec allocator shared by all subsequent retrievals.
func New(cfg Config) (*Renderer, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	var limiter *rate.Limiter
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("lang", "es-CO"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting down the browser.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Retrieve navigates to url in a new tab and returns the rendered DOM. A
// non-2xx document response surfaces as an HTTP status error alongside the
// rendered body, so challenge pages can still be inspected.
func (r *Renderer) Retrieve(ctx context.Context, url, userAgent string) ([]byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("render rate wait: %w", err)
		}
	}

	taskCtx, taskCancel := chromedp.NewContext(r.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, r.cfg.NavigationTimeout)
	defer cancel()

	// Stop the tab early if the caller's context ends first.
	go func() {
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	status := newDocumentStatus()
	chromedp.ListenTarget(taskCtx, status.captureEvent)

	var html string
	actions := []chromedp.Action{
		setupAction(userAgent),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	body := []byte(html)
	if code := status.code(); code >= 400 {
		return body, &policy.HTTPStatusError{Code: code}
	}
	return body, nil
}

func setupAction(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		headers := network.Headers{"Accept-Language": "es-CO,es;q=0.9,en;q=0.5"}
		if err := network.SetExtraHTTPHeaders(headers).Do(ctx); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
		return nil
	})
}

// documentStatus records the status code of the main document response.
type documentStatus struct {
	mu     sync.RWMutex
	status int
}

func newDocumentStatus() *documentStatus {
	return &documentStatus{}
}

func (d *documentStatus) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	d.status = int(resp.Response.Status)
	d.mu.Unlock()
}

func (d *documentStatus) code() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}
