package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxRedirects = 5

var errTooManyRedirects = errors.New("too many redirects")

// Fetcher retrieves raw feed bytes over HTTP with conditional-request
// support. It has no access to the catalog; its only side effect is the
// network call.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	timeout   time.Duration
}

func NewFetcher(userAgent string, timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errTooManyRedirects
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
		timeout:   timeout,
	}
}

// Run fetches the feed at url, sending the prior caching tokens as
// conditional-request headers. It returns a classified *FetchError on
// failure: network faults, timeouts and 5xx are transient; oversized
// payloads, redirect loops and other 4xx (except 429) are permanent.
func (f *Fetcher) Run(ctx context.Context, url string, tokens CacheTokens) (*FetchResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FailurePermanent, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
	if tokens.ETag != "" {
		req.Header.Set("If-None-Match", tokens.ETag)
	}
	if tokens.LastModified != "" {
		req.Header.Set("If-Modified-Since", tokens.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, errTooManyRedirects) {
			return nil, &FetchError{Kind: FailurePermanent, Err: err}
		}
		return nil, &FetchError{Kind: FailureTransient, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &FetchResult{
			Status:     FetchNotModified,
			Tokens:     tokens,
			HTTPStatus: resp.StatusCode,
		}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Read one byte past the cap to tell "exactly at the cap" from
		// "over it".
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			return nil, &FetchError{Kind: FailureTransient, StatusCode: resp.StatusCode,
				Err: fmt.Errorf("failed to read response body: %w", err)}
		}
		if int64(len(body)) > f.maxBytes {
			return nil, &FetchError{Kind: FailurePermanent, StatusCode: resp.StatusCode,
				Err: fmt.Errorf("feed exceeds %d byte limit", f.maxBytes)}
		}
		if len(body) == 0 {
			return nil, &FetchError{Kind: FailureTransient, StatusCode: resp.StatusCode,
				Err: errors.New("empty response body")}
		}

		return &FetchResult{
			Status: FetchFresh,
			Body:   body,
			Tokens: CacheTokens{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			},
			HTTPStatus: resp.StatusCode,
		}, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &FetchError{Kind: FailureTransient, StatusCode: resp.StatusCode,
			Err: errors.New("rate limited")}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &FetchError{Kind: FailurePermanent, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)}

	default:
		return nil, &FetchError{Kind: FailureTransient, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)}
	}
}
