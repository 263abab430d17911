// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package requests performs outbound HTTP calls to the translation service.

Every call waits on an optional token bucket limiter so a burst of form edits
cannot exhaust the free daily quota, and is recorded in an [audit.Span].
*/
package requests

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"codeberg.org/newbee/autofill/core/audit"
	"codeberg.org/newbee/autofill/core/idgen"
	"codeberg.org/newbee/autofill/server/request_context"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

var (
	errAPIResponseError = errors.New("API response indicated error")
	errRateLimited      = errors.New("outbound rate limit wait aborted")
)

// APIError represents an HTTP error status returned by an upstream service.
type APIError struct {
	// StatusCode is the HTTP status code from the response.
	// Always >= 400.
	StatusCode int

	// Message contains the error message from the response body, or the status text.
	Message string

	// Err is the underlying error cause.
	Err error
}

// Error returns a formatted error message including the status code and API message if available.
func (e *APIError) Error() string {
	var b strings.Builder

	b.WriteString(e.Err.Error())

	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	fmt.Fprintf(&b, " (status code: %d)", e.StatusCode)

	return b.String()
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Client sends audited, rate-limited requests.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit allows ratePerSecond requests per second with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(ratePerSecond float64, burst int) Option {
	return func(c *Client) {
		if ratePerSecond <= 0 {
			c.limiter = nil

			return
		}

		c.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), max(burst, 1))
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a Client using [DefaultHTTPClient] and no rate limit unless configured otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{httpClient: DefaultHTTPClient}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get performs a GET request and returns the response body.
//
// A status code outside 2xx is returned as an *APIError.
func (c *Client) Get(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", errRateLimited, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range headers {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	status, body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &APIError{
			StatusCode: status,
			Message:    errorMessage(status, body),
			Err:        errAPIResponseError,
		}
	}

	return body, nil
}

// send executes req inside an audit span and returns the status code and body.
func (c *Client) send(ctx context.Context, req *http.Request) (_ int, _ []byte, err error) {
	span := audit.Span{
		Destination: audit.ToTranslator,
		RequestID:   idgen.Child(request_context.FromContext(ctx).RequestID),
		Method:      req.Method,
		URL:         redactQuery(req.URL.String()),
	}

	defer func() {
		span.Error = err
		span.End()
		span.Log()
	}()

	span.Begin(ctx)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	span.StatusCode = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	span.Size = len(body)

	return resp.StatusCode, body, nil
}

// errorMessage extracts a human readable message from an error response body.
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"responseDetails", "message", "error"} {
			if msg := gjson.GetBytes(body, path); msg.Type == gjson.String && msg.Str != "" {
				return msg.Str
			}
		}
	}

	if msg := http.StatusText(status); msg != "" {
		return msg
	}

	return "An unknown API error occurred"
}

// redactQuery drops the query string so user-entered form text does not end up in logs.
func redactQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}

	return u
}

// IsContextCanceled returns true if the error is due to context cancellation or deadline exceeded.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
