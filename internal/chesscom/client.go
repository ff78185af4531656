// Package chesscom fetches a player's games from the chess.com public API.
//
// Requests are rate limited with a token bucket and carry an identifying
// User-Agent, as the API asks of clients.
package chesscom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the chess.com public API.
const DefaultBaseURL = "https://api.chess.com/pub"

// DefaultUserAgent identifies this client to the API.
const DefaultUserAgent = "coach/1.0 (+https://github.com/discochess/coach)"

// DefaultRequestsPerMinute is the default request budget.
const DefaultRequestsPerMinute = 120

// Sentinel errors for well-defined error conditions.
var (
	// ErrUnknownUser indicates the player does not exist.
	ErrUnknownUser = errors.New("chesscom: unknown user")

	// ErrRateLimited indicates the API refused the request for exceeding
	// its rate limit.
	ErrRateLimited = errors.New("chesscom: rate limited")
)

// FetchError is a failed request to the API. It describes the whole fetch,
// never a single game.
type FetchError struct {
	Op     string
	User   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := "chesscom: " + e.Op
	if e.User != "" {
		msg += " for " + e.User
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	return msg + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client is a chess.com API client. A Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRequestsPerMinute sets the request budget. Zero or less disables
// rate limiting.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		limiter:    rate.NewLimiter(rate.Limit(float64(DefaultRequestsPerMinute)/60.0), 1),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("chesscom")
	return c
}

// get performs a rate-limited GET request and decodes the JSON response
// into v.
func (c *Client) get(ctx context.Context, op, user, u string, v any) error {
	fail := func(status int, err error) error {
		return &FetchError{Op: op, User: user, Status: status, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(0, fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fail(0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("reading response body: %w", err))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone:
		return fail(resp.StatusCode, ErrUnknownUser)
	case http.StatusTooManyRequests:
		return fail(resp.StatusCode, ErrRateLimited)
	default:
		return fail(resp.StatusCode, fmt.Errorf("unexpected response: %s", truncate(body, 200)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func (c *Client) playerURL(user string, parts ...string) string {
	return c.baseURL + "/player/" + url.PathEscape(strings.ToLower(user)) + "/" + strings.Join(parts, "/")
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
