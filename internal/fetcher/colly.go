package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Retriever performs one HTTP retrieval attempt. The fetcher owns retries,
// delays and user-agent rotation; implementations stay single-shot.
type Retriever interface {
	Retrieve(ctx context.Context, url, userAgent string) ([]byte, error)
}

// CollyRetriever retrieves static pages using a Colly collector cloned per
// attempt, so attempt-scoped settings never leak between requests.
type CollyRetriever struct {
	timeout time.Duration
	base    *colly.Collector
}

// NewCollyRetriever builds a retriever with a shared transport.
func NewCollyRetriever(timeout time.Duration) *CollyRetriever {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &CollyRetriever{
		timeout: timeout,
		base:    c,
	}
}

// Retrieve executes a single HTTP GET and returns the body. Non-2xx responses
// surface as *policy.HTTPStatusError via classifyVisit.
func (r *CollyRetriever) Retrieve(ctx context.Context, url, userAgent string) ([]byte, error) {
	collector := r.base.Clone()
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	if userAgent != "" {
		collector.UserAgent = userAgent
	}
	collector.SetRequestTimeout(r.timeout)

	var (
		body       []byte
		statusCode int
		visitErr   error
	)
	collector.OnRequest(func(req *colly.Request) {
		req.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Headers.Set("Accept-Language", "es-CO,es;q=0.9,en;q=0.8")
	})
	collector.OnResponse(func(resp *colly.Response) {
		statusCode = resp.StatusCode
		body = append([]byte(nil), resp.Body...)
	})
	collector.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			statusCode = resp.StatusCode
			body = append([]byte(nil), resp.Body...)
		}
		visitErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		return classifyVisit(body, statusCode, err, visitErr)
	}
}

// classifyVisit folds the collector callbacks into a single result. The body
// is returned even on HTTP errors so challenge pages served with 403/503 can
// still be scanned for captcha markers.
func classifyVisit(body []byte, status int, visitErr, callbackErr error) ([]byte, error) {
	err := callbackErr
	if err == nil {
		err = visitErr
	}
	if err == nil {
		return body, nil
	}
	if status > 0 && (status < 200 || status >= 300) {
		return body, &policy.HTTPStatusError{Code: status}
	}
	return body, err
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
