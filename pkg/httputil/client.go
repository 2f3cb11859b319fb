package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/sectorpulse/backend/pkg/logger"
	"github.com/wonny/sectorpulse/backend/pkg/retry"
)

// 브라우저 흉내 헤더 (KRX/Naver 는 봇 요청을 차단함)
const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client is an HTTP client wrapper with pacing, retry logic and logging
// ⭐ SSOT: 모든 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	retry      retry.Policy
	retryOn    bool
	pacer      *Pacer
	headers    http.Header
}

// New creates a new HTTP client
// ⭐ SSOT: http.Client 인스턴스는 여기서만 생성
func New(log *logger.Logger) *Client {
	headers := http.Header{}
	headers.Set("User-Agent", DefaultUserAgent)
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // Default timeout
		},
		logger:  log.WithField("module", "httputil"),
		retry:   retry.DefaultPolicy(),
		retryOn: true,
		headers: headers,
	}
}

// NewWithTimeout creates a client with custom timeout
func NewWithTimeout(log *logger.Logger, timeout time.Duration) *Client {
	client := New(log)
	client.httpClient.Timeout = timeout
	return client
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(p retry.Policy) *Client {
	c.retry = p
	c.retryOn = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryOn = false
	return c
}

// WithPacer spaces outgoing requests through p
func (c *Client) WithPacer(p *Pacer) *Client {
	c.pacer = p
	return c
}

// WithHeader adds a default header sent with every request
func (c *Client) WithHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, "", nil)
}

// PostForm performs a POST request with form data
func (c *Client) PostForm(ctx context.Context, targetURL string, formData url.Values) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, targetURL, "application/x-www-form-urlencoded", []byte(formData.Encode()))
}

// GetBody performs a GET request and returns the body of a 200 response
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return readOK(resp)
}

// PostFormBody performs a form POST and returns the body of a 200 response
func (c *Client) PostFormBody(ctx context.Context, targetURL string, formData url.Values) ([]byte, error) {
	resp, err := c.PostForm(ctx, targetURL, formData)
	if err != nil {
		return nil, err
	}
	return readOK(resp)
}

// do executes the request with pacing, retry logic and logging.
// The body is buffered so every attempt sends a fresh request.
func (c *Client) do(ctx context.Context, method, target, contentType string, body []byte) (*http.Response, error) {
	startTime := time.Now()

	attempt := func(ctx context.Context) (*http.Response, error) {
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return nil, retry.Permanent(fmt.Errorf("pacer wait failed: %w", err))
			}
		}

		var reader io.Reader
		if body != nil {
			reader = strings.NewReader(string(body))
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, retry.Permanent(fmt.Errorf("failed to create %s request: %w", method, err))
		}
		for k, v := range c.headers {
			req.Header[k] = v
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if IsRetryableError(resp.StatusCode) {
			resp.Body.Close()
			return nil, fmt.Errorf("retryable status %d", resp.StatusCode)
		}
		return resp, nil
	}

	// Log request
	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    target,
	}).Debug("HTTP request started")

	var resp *http.Response
	var err error
	if c.retryOn {
		resp, err = retry.DoValue(ctx, c.retry, attempt)
	} else {
		resp, err = attempt(ctx)
	}

	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      target,
			"duration": duration,
			"error":    err.Error(),
		}).Warn("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"url":         target,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}

func readOK(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, preview)
	}
	return body, nil
}

// IsRetryableError checks if a status code should be retried
func IsRetryableError(statusCode int) bool {
	// Retry on 5xx server errors and 429 Too Many Requests
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// Pacer enforces a fixed minimum delay between calls (cooperative throttling)
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer allows one call per interval; a zero interval disables pacing
func NewPacer(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
