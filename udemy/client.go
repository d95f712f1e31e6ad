package udemy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.udemy.com/api-2.0"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

// Client talks to the vendor's content API on behalf of one authenticated
// user. It is stateless across calls and safe for concurrent use.
type Client struct {
	// BaseURL may be overridden before the first request (test servers).
	BaseURL string

	token   string
	hc      *http.Client
	limiter *rate.Limiter
}

// NewClient returns a client that carries the given session credential on
// every request. Requests are throttled to stay under the vendor's radar.
func NewClient(token string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		token:   token,
		hc:      &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(8), 8),
	}
}

// getJSON issues an authenticated GET and returns the raw response body.
// Transient failures are retried with exponential backoff; all other error
// categories are surfaced immediately.
func (c *Client) getJSON(ctx context.Context, u string) ([]byte, error) {
	var body []byte

	op := func() error {
		b, err := c.getOnce(ctx, u)
		if err != nil {
			if errors.Is(err, ErrTransient) {
				log.WithError(err).Debugf("retrying request: url=%s", u)
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, u string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	log.Debugf("get: %s", u)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", "access_token="+c.token)
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("User-Agent", userAgent)

	rsp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer rsp.Body.Close()

	if err := classifyStatus(rsp.StatusCode, rsp.Status); err != nil {
		return nil, err
	}

	b, err := io.ReadAll(rsp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}
	return b, nil
}

// classifyStatus maps a response status onto the client's error categories.
// It returns nil for 2xx.
func classifyStatus(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s (token invalid or expired)", ErrAuth, status)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, status)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %s", ErrTransient, status)
	default:
		return fmt.Errorf("%w: unexpected status %s", ErrMalformed, status)
	}
}
