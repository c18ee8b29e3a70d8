// Package provision calls the external account-provisioning collaborator
// consulted during signup. The collaborator confirms member numbering before
// an account may be persisted; its internals are out of scope here.
package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrFailed is returned when the collaborator answers with result "fail".
var ErrFailed = errors.New("provisioning collaborator reported failure")

// ErrUnavailable is returned when the collaborator cannot be reached or
// answers with something other than the documented contract.
var ErrUnavailable = errors.New("provisioning collaborator unavailable")

const defaultTimeout = 5 * time.Second

// Client is a long-lived HTTP client for the member-count endpoint. Build it
// once at startup and reuse it; it is safe for concurrent use.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// Option adjusts a Client at construction time.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each collaborator call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a Client for the member-count endpoint at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		http:    &http.Client{},
		timeout: defaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type countResponse struct {
	Result string `json:"result"`
}

// ConfirmMemberCount asks the collaborator to confirm account numbering for
// a new signup. A "fail" result returns ErrFailed; transport errors and
// undocumented responses return ErrUnavailable.
func (c *Client) ConfirmMemberCount(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", c.url).Msg("provisioning call failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("provisioning call rejected")
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var body countResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch body.Result {
	case "success":
		return nil
	case "fail":
		return ErrFailed
	default:
		return fmt.Errorf("%w: unexpected result %q", ErrUnavailable, body.Result)
	}
}
