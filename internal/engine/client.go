package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"

	"github.com/nixlim/grouptop/internal/grouptree"
)

// ErrReportNotFound is returned when the engine answers 404.
var ErrReportNotFound = errors.New("report not found")

// RequestIDHeader carries the per-fetch id so engine logs can be matched
// against the local fetch log.
const RequestIDHeader = "X-Request-Id"

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError is a non-200, non-404 engine response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("engine returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("engine returned %d: %s", e.Code, e.Message)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Response is a decoded flat-groups answer.
type Response struct {
	RequestID string
	Rows      []grouptree.FlatRow
	Status    int
	Attempts  int
	Duration  time.Duration

	// EmptyRange is set when the resolved period had zero width, so an
	// empty answer is expected rather than suspicious.
	EmptyRange bool
}

// Client posts aggregation queries to the engine. It is safe for concurrent
// use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	attempts   uint
	delay      time.Duration
	logger     Logger
	newID      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithRetry sets the total attempt count and the base delay between them.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		if attempts == 0 {
			attempts = 1
		}
		c.attempts = attempts
		c.delay = delay
	}
}

// WithLogger records every exchange.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the engine at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		attempts:   3,
		delay:      200 * time.Millisecond,
		logger:     NopLogger{},
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the endpoint path for q.
func Path(q Query) string {
	if q.Realtime {
		return "/realtime/flat-groups"
	}
	return "/reports/" + url.PathEscape(q.ReportID) + "/flat-groups"
}

// Fetch validates q, posts it and decodes the rows. Transient failures
// (network errors, 5xx, 429) are retried; input errors, 404 and other 4xx
// are returned at once.
func (c *Client) Fetch(ctx context.Context, q Query, now time.Time) (Response, error) {
	req, err := BuildRequest(q, now)
	if err != nil {
		return Response{}, err
	}
	resp, err := c.Post(ctx, Path(q), req)
	resp.EmptyRange = req.Range.Empty()
	return resp, err
}

// Post sends an already built request to path.
func (c *Client) Post(ctx context.Context, path string, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	resp := Response{RequestID: c.newID()}
	start := time.Now()

	var status int
	err = retry.Do(
		func() error {
			resp.Attempts++
			rows, code, postErr := c.post(ctx, path, resp.RequestID, body)
			status = code
			if postErr != nil {
				return postErr
			}
			resp.Rows = rows
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(5*time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
	)
	resp.Duration = time.Since(start)
	resp.Status = status

	c.logger.LogExchange(Exchange{
		RequestID: resp.RequestID,
		Path:      path,
		Request:   req,
		Status:    status,
		Rows:      len(resp.Rows),
		Attempts:  resp.Attempts,
		Duration:  resp.Duration,
		Err:       err,
	})

	return resp, err
}

func (c *Client) post(ctx context.Context, path, requestID string, body []byte) ([]grouptree.FlatRow, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("posting %s: %w", path, err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		msg := errorMessage(httpResp.Body)
		if msg == "" {
			return nil, httpResp.StatusCode, ErrReportNotFound
		}
		return nil, httpResp.StatusCode, fmt.Errorf("%w: %s", ErrReportNotFound, msg)
	default:
		return nil, httpResp.StatusCode, &StatusError{Code: httpResp.StatusCode, Message: errorMessage(httpResp.Body)}
	}

	var rows []grouptree.FlatRow
	if err := json.NewDecoder(httpResp.Body).Decode(&rows); err != nil {
		return nil, httpResp.StatusCode, &DecodeError{Err: err}
	}
	return rows, httpResp.StatusCode, nil
}

// DecodeError wraps a response body that is not an array of row objects.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decoding flat-groups response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// errorMessage extracts {"error": "..."} from a body, falling back to the
// trimmed text.
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrReportNotFound) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var de *DecodeError
	return !errors.As(err, &de)
}
