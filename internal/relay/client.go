package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/feedsync/feedsync/internal/feed"
)

// Client is the item-source contract the sync engine consumes. ListRefs must
// return refs newest-first; the cursor is opaque and empty on the last page.
type Client interface {
	ListRefs(ctx context.Context, user feed.UserID, cursor string, limit int) ([]feed.ItemRef, string, error)
	GetItem(ctx context.Context, user feed.UserID, sig feed.Signature) ([]byte, error)
	PutItem(ctx context.Context, user feed.UserID, ref feed.ItemRef, data []byte) error
	GetProfile(ctx context.Context, user feed.UserID) (*feed.ProfileRecord, error)
}

// HTTPClient talks to one relay over its HTTP API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

type refsResponse struct {
	Refs []feed.ItemRef `json:"refs"`
	Next string         `json:"next"`
}

type profileResponse struct {
	Ref  feed.ItemRef `json:"ref"`
	Item []byte       `json:"item"`
}

// NewHTTPClient builds a client for the relay at baseURL. The token is
// optional; when set it is sent as a bearer credential on every request.
func NewHTTPClient(baseURL, token string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	// ratePerSec <= 0 disables throttling
	limit := rate.Inf
	burst := 0
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = ratePerSec * 2
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		limiter:    rate.NewLimiter(limit, burst),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (c *HTTPClient) ListRefs(ctx context.Context, user feed.UserID, cursor string, limit int) ([]feed.ItemRef, string, error) {
	reqURL := fmt.Sprintf("%s/v1/users/%s/refs?limit=%d", c.baseURL, url.PathEscape(string(user)), limit)
	if cursor != "" {
		reqURL += "&cursor=" + url.QueryEscape(cursor)
	}

	status, body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, "", err
	}

	var out refsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, "", fmt.Errorf("decoding refs response: %w", err)
	}
	return out.Refs, out.Next, nil
}

func (c *HTTPClient) GetItem(ctx context.Context, user feed.UserID, sig feed.Signature) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/v1/users/%s/items/%s", c.baseURL, url.PathEscape(string(user)), sig)

	status, body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) PutItem(ctx context.Context, user feed.UserID, ref feed.ItemRef, data []byte) error {
	reqURL := fmt.Sprintf("%s/v1/users/%s/items/%s?ts=%d", c.baseURL, url.PathEscape(string(user)), ref.Sig, ref.Timestamp)

	status, body, err := c.do(ctx, http.MethodPut, reqURL, data)
	if err != nil {
		return err
	}
	return checkStatus(status, body)
}

func (c *HTTPClient) GetProfile(ctx context.Context, user feed.UserID) (*feed.ProfileRecord, error) {
	reqURL := fmt.Sprintf("%s/v1/users/%s/profile", c.baseURL, url.PathEscape(string(user)))

	status, body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var out profileResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decoding profile response: %w", err)
	}
	return &feed.ProfileRecord{Ref: out.Ref, Data: out.Item}, nil
}

// do performs one request with rate limiting, retrying transient failures
// (network errors, 5xx, 429) with exponential backoff. The returned body is
// fully read and the connection released.
func (c *HTTPClient) do(ctx context.Context, method, reqURL string, payload []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rate limiter: %w", err)
	}

	c.logger.Debug("relay request", zap.String("method", method), zap.String("url", reqURL))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request",
				zap.String("url", reqURL),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("creating request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/octet-stream")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing so error responses keep their message
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		return resp.StatusCode, body, nil
	}

	return 0, nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func checkStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthFailed
	default:
		return fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body)))
	}
}
