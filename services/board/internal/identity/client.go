// Package identity talks to the external user directory that owns
// authentication and user profiles.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/example/board-platform/services/board/internal/domain"
)

const (
	HeaderPlatform  = "x-wolf-auth-platform"
	HeaderToken     = "x-wolf-auth-token"
	HeaderUserToken = "x-wolf-user-token"
)

// Profile is the author object embedded in board responses.
type Profile struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Firstname string `json:"firstname,omitempty"`
	Lastname  string `json:"lastname,omitempty"`
}

// Directory resolves user IDs to profiles. Missing users are absent from
// the result.
type Directory interface {
	GetByIDs(ctx context.Context, ids []string, userToken string) (map[string]Profile, error)
}

// ClientConfig holds the directory credentials and retry policy.
type ClientConfig struct {
	Platform       string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Config     ClientConfig
	CB         *gobreaker.CircuitBreaker
	Log        *zap.Logger
}

var _ Directory = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(c *Client) { c.CB = cb }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.Log = log }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

func New(baseURL string, cfg ClientConfig, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Config:     cfg,
		Log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewBreaker builds the circuit breaker guarding directory calls. Client
// errors (4xx) such as one caller's rejected user token do not count
// toward tripping it.
func NewBreaker(maxRequests uint32, interval, timeout time.Duration, failureThreshold uint32, log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "identity",
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit-breaker state change", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// GetByIDs fetches profiles for ids in one call. An unparsable payload
// degrades to an empty result; transport and status failures are
// reported as domain.ErrUpstream.
func (c *Client) GetByIDs(ctx context.Context, ids []string, userToken string) (map[string]Profile, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return map[string]Profile{}, nil
	}

	body, err := c.doWithBreaker(ctx, ids, userToken)
	if err != nil {
		return nil, fmt.Errorf("%w: users/list: %w", domain.ErrUpstream, err)
	}

	var list []Profile
	if err := json.Unmarshal(body, &list); err != nil {
		c.Log.Warn("identity: unparsable users/list payload",
			zap.Int("ids", len(ids)),
			zap.String("body", string(body[:min(len(body), 200)])),
			zap.Error(err),
		)
		return map[string]Profile{}, nil
	}
	out := make(map[string]Profile, len(list))
	for _, p := range list {
		if p.ID != "" {
			out[p.ID] = p
		}
	}
	return out, nil
}

func (c *Client) doWithBreaker(ctx context.Context, ids []string, userToken string) ([]byte, error) {
	if c.CB == nil {
		return c.doWithRetry(ctx, ids, userToken)
	}
	result, err := c.CB.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, ids, userToken)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doWithRetry(ctx context.Context, ids []string, userToken string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.Config.RetryBaseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			c.Log.Debug("identity: retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		body, err := c.do(ctx, ids, userToken)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.Log.Warn("identity: request failed", zap.Int("attempt", attempt), zap.Error(err))
		var se *statusError
		if errors.As(err, &se) && se.code < http.StatusInternalServerError {
			break
		}
	}
	return nil, lastErr
}

// countsAsHealthy reports whether err leaves the directory looking
// healthy to the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.code < http.StatusInternalServerError
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("identity: status %d body=%q", e.code, e.body)
}

func (c *Client) do(ctx context.Context, ids []string, userToken string) ([]byte, error) {
	form := url.Values{"ids": {strings.Join(ids, ",")}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/users/list", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderPlatform, c.Config.Platform)
	req.Header.Set(HeaderToken, c.Config.Token)
	if userToken != "" {
		req.Header.Set(HeaderUserToken, userToken)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: string(b[:min(len(b), 200)])}
	}
	return b, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
