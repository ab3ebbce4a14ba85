// Package request wraps outbound calls to the hosted backend with an adaptive
// per-attempt timeout and a bounded number of retries.
package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config controls timeouts and retries for every call made through a Client.
type Config struct {
	// Timeout is the deadline for the first attempt.
	Timeout time.Duration
	// TimeoutMultiplier grows the deadline on every retry.
	TimeoutMultiplier float64
	// MaxTimeout caps the per-attempt deadline.
	MaxTimeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BackoffBase is the wait before the first retry.
	BackoffBase time.Duration
	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration
}

// DefaultConfig returns the defaults used for hosted backend calls.
func DefaultConfig() Config {
	return Config{
		Timeout:           5 * time.Second,
		TimeoutMultiplier: 1.5,
		MaxTimeout:        15 * time.Second,
		MaxRetries:        2,
		BackoffBase:       200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
	}
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ErrExhausted wraps the last transport or server error after all retries failed.
var ErrExhausted = errors.New("request: retries exhausted")

// RetryObserver is notified before every retry.
type RetryObserver func(attempt int, err error)

type Client struct {
	http    *http.Client
	cfg     Config
	onRetry RetryObserver
}

func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.TimeoutMultiplier < 1 {
		cfg.TimeoutMultiplier = 1
	}
	if cfg.MaxTimeout < cfg.Timeout {
		cfg.MaxTimeout = cfg.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{http: httpClient, cfg: cfg}
}

// OnRetry registers an observer, typically a metrics counter.
func (c *Client) OnRetry(fn RetryObserver) {
	c.onRetry = fn
}

// AttemptTimeout returns the deadline used for the given zero-based attempt.
func (c *Client) AttemptTimeout(attempt int) time.Duration {
	timeout := float64(c.cfg.Timeout)
	for i := 0; i < attempt; i++ {
		timeout *= c.cfg.TimeoutMultiplier
	}
	if d := time.Duration(timeout); d < c.cfg.MaxTimeout {
		return d
	}
	return c.cfg.MaxTimeout
}

// Do sends the request, retrying transport failures, 429 and 5xx responses.
// Any other status, including 4xx, is returned to the caller without retrying.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.BackoffBase
	policy.MaxInterval = c.cfg.MaxBackoff
	policy.MaxElapsedTime = 0
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx)

	var (
		result  *Response
		attempt int
	)
	op := func() error {
		resp, err := c.attempt(ctx, attempt, method, url, header, body)
		attempt++
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if retryable(resp.StatusCode) {
			result = resp
			return fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		result = resp
		return nil
	}
	notify := func(err error, _ time.Duration) {
		if c.onRetry != nil {
			c.onRetry(attempt, err)
		}
	}

	if err := backoff.RetryNotify(op, bounded, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A retryable status that never recovered is still a response the caller can inspect.
		if result != nil && retryable(result.StatusCode) {
			return result, fmt.Errorf("%w: %v", ErrExhausted, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExhausted, err)
	}
	return result, nil
}

func (c *Client) attempt(ctx context.Context, attempt int, method, url string, header http.Header, body []byte) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.AttemptTimeout(attempt))
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
