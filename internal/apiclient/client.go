// Package apiclient talks to a running chess server: a fasthttp JSON client for the
// HTTP routes and a WebSocket spectator for live games.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// HeaderProvider supplies extra headers for every request and handshake.
type HeaderProvider func() map[string]string

// APIError is a non-2xx reply. Code and Message come from the server's error envelope
// when it sent one.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chess api: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("chess api: status %d: %s", e.Status, e.Body)
}

// Temporary reports whether the server may answer differently on a second try.
func (e *APIError) Temporary() bool {
	switch e.Status {
	case 500, 502, 503, 504:
		return true
	}
	return false
}

type transportError struct{ err error }

func (e *transportError) Error() string { return "chess api: request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	timeout  time.Duration
	retryMax int
}

type Option func(*Client)

// WithTimeout bounds each attempt; a sooner context deadline wins.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets how many attempts an idempotent call gets.
func WithRetry(attempts int) Option {
	return func(c *Client) { c.retryMax = attempts }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			Name:            "chesscheck",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 64,
		},
		timeout:  10 * time.Second,
		retryMax: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the server root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// call describes one route invocation.
type call struct {
	method string
	path   string
	body   any
	// idempotent calls are retried after transport errors and 5xx replies
	idempotent bool
}

// send runs k and decodes the reply into a fresh T.
func send[T any](ctx context.Context, c *Client, k call) (*T, error) {
	var out T
	if err := c.do(ctx, k, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, k call, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	if err := c.prepare(req, k); err != nil {
		return err
	}

	attempts := 1
	if k.idempotent && c.retryMax > 1 {
		attempts = c.retryMax
	}
	for attempt := 1; ; attempt++ {
		err := c.attempt(ctx, req, resp)
		if err == nil {
			break
		}
		if attempt >= attempts || !retryable(err) {
			return err
		}
		if waitErr := wait(ctx, backoffDuration(attempt)); waitErr != nil {
			return err
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s %s: %w", k.method, k.path, err)
	}
	return nil
}

func (c *Client) prepare(req *fasthttp.Request, k call) error {
	req.Header.SetMethod(k.method)
	req.SetRequestURI(c.baseURL + k.path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for name, v := range c.headers() {
			if strings.TrimSpace(name) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(name, v)
			}
		}
	}
	if k.body == nil {
		return nil
	}
	payload, err := json.Marshal(k.body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req.SetBody(payload)
	return nil
}

func (c *Client) attempt(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return &transportError{err: err}
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return apiError(status, resp.Body())
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(c.timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

func apiError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: truncate(string(body), 512)}
	var env struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(body, &env) == nil {
		e.Code, e.Message = env.Code, env.Error
	}
	return e
}

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && ae.Temporary()
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and stops growing after six attempts.
func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<(attempt-1)) * 100 * time.Millisecond
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
