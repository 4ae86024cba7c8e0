// Package scryfall is a small client for the Scryfall API covering the
// calls the engines need: named card lookups for prices and bulk data
// downloads for the catalog.
package scryfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.scryfall.com"
	defaultDelay   = 100 * time.Millisecond // Scryfall asks for at most 10 req/sec
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second
)

// ClientConfig configures a Client. Zero fields take defaults.
type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	RateDelay  time.Duration // minimum delay between requests
	Backoff    time.Duration // first retry delay
	HTTPClient *http.Client
}

// Client is a rate-limited Scryfall API client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
	backoff     time.Duration
}

// NewClient creates a client.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = "deckforge/1.0"
	}
	if config.RateDelay <= 0 {
		config.RateDelay = defaultDelay
	}
	if config.Backoff <= 0 {
		config.Backoff = initialBackoff
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: requestTimeout}
	}

	return &Client{
		baseURL:     config.BaseURL,
		httpClient:  config.HTTPClient,
		rateLimiter: rate.NewLimiter(rate.Every(config.RateDelay), 1),
		userAgent:   config.UserAgent,
		backoff:     config.Backoff,
	}
}

// GetCardByName retrieves a printing by exact name, optionally limited to
// a set.
func (c *Client) GetCardByName(ctx context.Context, name, setCode string) (*Card, error) {
	q := url.Values{}
	q.Set("exact", name)
	if setCode != "" {
		q.Set("set", setCode)
	}

	var card Card
	if err := c.getJSON(ctx, c.baseURL+"/cards/named?"+q.Encode(), &card); err != nil {
		return nil, fmt.Errorf("failed to get card %q: %w", name, err)
	}
	return &card, nil
}

// GetBulkData lists the available bulk data files.
func (c *Client) GetBulkData(ctx context.Context) (*BulkDataList, error) {
	var list BulkDataList
	if err := c.getJSON(ctx, c.baseURL+"/bulk-data", &list); err != nil {
		return nil, fmt.Errorf("failed to get bulk data: %w", err)
	}
	return &list, nil
}

// DownloadBulk streams the bulk file of the given type (for example
// "default_cards") to w and returns its metadata.
func (c *Client) DownloadBulk(ctx context.Context, bulkType string, w io.Writer) (*BulkData, error) {
	list, err := c.GetBulkData(ctx)
	if err != nil {
		return nil, err
	}

	var target *BulkData
	for i := range list.Data {
		if list.Data[i].Type == bulkType {
			target = &list.Data[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("bulk data type %q not offered", bulkType)
	}

	resp, err := c.do(ctx, target.DownloadURI)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", bulkType, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", bulkType, err)
	}
	return target, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, result any) error {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// do performs a GET with rate limiting, retrying network errors and 429s
// with exponential backoff. The caller closes the body of a 200 response.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = min(backoff*2, maxBackoff)
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, nil

		case http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				backoff = time.Duration(secs) * time.Second
			}
			_ = resp.Body.Close()
			continue

		case http.StatusNotFound:
			_ = resp.Body.Close()
			return nil, &NotFoundError{URL: rawURL}

		default:
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			var apiErr APIError
			if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Details != "" {
				return nil, &apiErr
			}
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
