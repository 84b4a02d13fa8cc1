// Package httputil wraps the HTTP fetching the scrapers share: retries,
// user-agent rotation, politeness delays and charset normalization. Japanese
// listing sites still serve Shift_JIS and EUC-JP, so every body goes through
// charset detection before it reaches a parser.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
}

// Fetcher is the shared page fetcher. Safe for concurrent use.
type Fetcher struct {
	client     *http.Client
	maxRetries int
	delay      time.Duration
}

func NewFetcher(delayMS, maxRetries int) *Fetcher {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
		maxRetries: maxRetries,
		delay:      time.Duration(delayMS) * time.Millisecond,
	}
}

// Fetch GETs a URL and returns the body as UTF-8. Retries with exponential
// backoff on network errors, 429 and 5xx; other HTTP errors fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retry, err := f.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s: %w", url, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.7,en;q=0.3")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("status %d", resp.StatusCode)
	}

	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, false, fmt.Errorf("charset detect: %w", err)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, true, err
	}
	return data, false, nil
}

// Sleep pauses between page requests: the configured delay plus up to 50%
// jitter so request timing does not look mechanical.
func (f *Fetcher) Sleep(ctx context.Context) error {
	if f.delay <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(f.delay)/2 + 1))
	select {
	case <-time.After(f.delay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
