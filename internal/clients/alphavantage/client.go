// Package alphavantage fetches company fundamentals from the Alpha Vantage API
// and assembles them into financial records.
package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/fincache/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 10 << 20

// Config holds client settings.
type Config struct {
	APIKey  string
	BaseURL string
	// DailyLimit is the request budget per UTC day (25 on the free tier).
	DailyLimit int
	// RequestsPerMinute paces requests. Zero disables pacing.
	RequestsPerMinute int
	// MaxRetries is the number of retries for transient failures.
	MaxRetries           uint64
	RetryInitialInterval time.Duration
	// BreakerThreshold is the number of consecutive transient failures that
	// opens the circuit breaker.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
	Timeout          time.Duration
}

// DefaultConfig returns free-tier settings.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:               apiKey,
		BaseURL:              defaultBaseURL,
		DailyLimit:           25,
		RequestsPerMinute:    5,
		MaxRetries:           3,
		RetryInitialInterval: time.Second,
		BreakerThreshold:     5,
		BreakerCooldown:      time.Minute,
		Timeout:              30 * time.Second,
	}
}

// ClientInterface defines the Alpha Vantage operations used by the cache.
type ClientInterface interface {
	FetchRecord(ctx context.Context, symbol string) (*domain.FinancialRecord, error)
	GetRemainingRequests() int
	ResetDailyCounter()
}

// Client is an Alpha Vantage API client with a daily request budget,
// per-minute pacing, retries and a circuit breaker.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	maxRetries      uint64
	initialInterval time.Duration

	mu         sync.Mutex
	dailyLimit int
	dailyCount int
	resetAt    time.Time

	log zerolog.Logger
}

// NewClient creates a client with free-tier settings.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return NewClientWithConfig(DefaultConfig(apiKey), log)
}

// NewClientWithConfig creates a client.
func NewClientWithConfig(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}

	c := &Client{
		apiKey:          cfg.APIKey,
		baseURL:         cfg.BaseURL,
		client:          &http.Client{Timeout: cfg.Timeout},
		limiter:         rate.NewLimiter(limit, 1),
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.RetryInitialInterval,
		dailyLimit:      cfg.DailyLimit,
		resetAt:         nextMidnightUTC(),
		log:             log.With().Str("client", "alphavantage").Logger(),
	}

	threshold := cfg.BreakerThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "alphavantage",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return c
}

// GetRemainingRequests returns the requests left in today's budget.
func (c *Client) GetRemainingRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover()
	return c.dailyLimit - c.dailyCount
}

// ResetDailyCounter restores the full daily budget.
func (c *Client) ResetDailyCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dailyCount = 0
	c.resetAt = nextMidnightUTC()
	c.log.Info().Int("limit", c.dailyLimit).Msg("Daily request counter reset")
}

// checkRateLimit takes one request from the daily budget.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rollover()
	if c.dailyCount >= c.dailyLimit {
		return ErrRateLimitExceeded{}
	}
	c.dailyCount++
	return nil
}

// rollover resets the budget after midnight UTC. Caller holds c.mu.
func (c *Client) rollover() {
	if time.Now().UTC().Before(c.resetAt) {
		return
	}
	c.dailyCount = 0
	c.resetAt = nextMidnightUTC()
}

// request calls one API function and returns the raw body.
func (c *Client) request(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	var body []byte

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		if err := c.checkRateLimit(); err != nil {
			return backoff.Permanent(err)
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.doRequest(ctx, function, params)
		})
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			c.log.Debug().Err(err).Str("function", function).Msg("Request failed, retrying")
			return err
		}
		body = out.([]byte)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) doRequest(ctx context.Context, function string, params map[string]string) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("function", function)
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.log.Debug().Str("function", function).Str("symbol", params["symbol"]).Msg("Calling Alpha Vantage")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := c.checkAPIError(body); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && params["symbol"] != "" && strings.Contains(apiErr.Message, "Invalid API call") {
			return nil, ErrSymbolNotFound{Symbol: params["symbol"]}
		}
		return nil, err
	}
	return body, nil
}

// checkAPIError detects error payloads, which Alpha Vantage sends with
// HTTP 200.
func (c *Client) checkAPIError(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if bytes.Contains(trimmed, []byte("Thank you for using Alpha Vantage")) {
		return ErrRateLimitExceeded{}
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var envelope struct {
		Note         string `json:"Note"`
		Information  string `json:"Information"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil
	}

	switch {
	case envelope.ErrorMessage != "":
		lower := strings.ToLower(envelope.ErrorMessage)
		if strings.Contains(lower, "apikey") || strings.Contains(lower, "api key") {
			return ErrInvalidAPIKey{}
		}
		return &APIError{Message: envelope.ErrorMessage}
	case envelope.Note != "":
		return ErrRateLimitExceeded{}
	case envelope.Information != "":
		lower := strings.ToLower(envelope.Information)
		if strings.Contains(lower, "api key") && strings.Contains(lower, "invalid") {
			return ErrInvalidAPIKey{}
		}
		return ErrRateLimitExceeded{}
	}
	return nil
}

// isTransient reports whether err is worth retrying: transport failures,
// 5xx and 429 responses.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}

	var (
		rateErr     ErrRateLimitExceeded
		keyErr      ErrInvalidAPIKey
		notFoundErr ErrSymbolNotFound
		apiErr      *APIError
	)
	if errors.As(err, &rateErr) || errors.As(err, &keyErr) || errors.As(err, &notFoundErr) || errors.As(err, &apiErr) {
		return false
	}
	return true
}

// nextMidnightUTC returns the start of the next UTC day.
func nextMidnightUTC() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// sortNewestFirst orders rows by descending date string.
func sortNewestFirst[T any](rows []T, date func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return date(rows[i]) > date(rows[j])
	})
}
