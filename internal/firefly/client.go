// Package firefly pushes transactions to a Firefly III instance.
package firefly

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/trsync/internal/common"
	"github.com/Veraticus/trsync/internal/model"
	"github.com/Veraticus/trsync/internal/service"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	transactionsPath = "api/v1/transactions"
	defaultTimeout   = 30 * time.Second
	maxErrorBody     = 64 << 10
)

// duplicatePattern matches Firefly's validation message for a rejected duplicate hash.
var duplicatePattern = regexp.MustCompile(`Duplicate of transaction #(\d+)`)

// Config errors.
var (
	ErrMissingBaseURL = errors.New("firefly base url is required")
	ErrMissingToken   = errors.New("firefly token is required")
)

// Config holds Firefly III connection settings.
type Config struct {
	BaseURL string
	Token   string
	// Timeout bounds one HTTP request. Zero means 30s.
	Timeout time.Duration
	// MaxAttempts is the number of tries per transaction. Zero means one.
	MaxAttempts int
	// RequestsPerSecond throttles pushes. Zero means unlimited.
	RequestsPerSecond float64
	// ErrorIfDuplicateHash asks Firefly to reject transactions it already stored.
	// It is always on when MaxAttempts > 1, so a retry after a lost response
	// cannot store the transaction twice.
	ErrorIfDuplicateHash bool
}

// APIError is a non-2xx response from Firefly III.
type APIError struct {
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("firefly api error: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return common.ErrLedgerRejected
}

// Retryable reports whether the request may succeed when sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type storeRequest struct {
	Transactions         []model.LedgerPayload `json:"transactions"`
	ErrorIfDuplicateHash bool                  `json:"error_if_duplicate_hash"`
	ApplyRules           bool                  `json:"apply_rules"`
}

type storeResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Client implements service.LedgerGateway over the Firefly III REST API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	endpoint   string
	token      string
	retry      service.RetryOptions
	duplicates bool
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrMissingToken
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     common.Component("firefly"),
		endpoint:   Endpoint(cfg.BaseURL),
		token:      cfg.Token,
		duplicates: cfg.ErrorIfDuplicateHash || attempts > 1,
		retry: service.RetryOptions{
			MaxAttempts:  attempts,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
	}, nil
}

// Endpoint joins the base URL and the transactions path, adding the
// separating slash when the base URL lacks one.
func Endpoint(baseURL string) string {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL + transactionsPath
}

// SetRetryDelay overrides the backoff between attempts (useful for testing).
func (c *Client) SetRetryDelay(initial, maximum time.Duration) {
	c.retry.InitialDelay = initial
	c.retry.MaxDelay = maximum
}

// Push stores one transaction and returns the Firefly transaction group id.
func (c *Client) Push(ctx context.Context, payload model.LedgerPayload) (string, error) {
	body, err := json.Marshal(storeRequest{
		Transactions:         []model.LedgerPayload{payload},
		ErrorIfDuplicateHash: c.duplicates,
		ApplyRules:           true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}

	var id string
	err = common.WithRetry(ctx, func() error {
		var sendErr error
		id, sendErr = c.send(ctx, body, payload.ExternalID)
		return sendErr
	}, c.retry)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (c *Client) send(ctx context.Context, body []byte, legID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	traceID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Trace-Id", traceID)

	c.logger.Debug("Pushing transaction", "leg_id", legID, "trace_id", traceID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", common.Retryable(fmt.Errorf("failed to execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		c.logger.Debug("Firefly rejected transaction",
			"leg_id", legID,
			"trace_id", traceID,
			"status_code", resp.StatusCode)
		if id, ok := duplicateOf(apiErr); ok {
			// An earlier attempt, or an earlier run, already stored it.
			c.logger.Info("Transaction already stored",
				"leg_id", legID,
				"ledger_id", id)
			return id, nil
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return "", common.Permanent(fmt.Errorf("%w: %w", common.ErrUnauthorized, apiErr))
		}
		if apiErr.Retryable() {
			return "", common.Retryable(apiErr)
		}
		return "", common.Permanent(apiErr)
	}

	var stored storeResponse
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil && !errors.Is(err, io.EOF) {
		// Firefly already stored it; reporting a failure here would push it twice.
		c.logger.Warn("Could not read Firefly response", "leg_id", legID, "error", err)
	}

	c.logger.Debug("Transaction stored",
		"leg_id", legID,
		"ledger_id", stored.Data.ID,
		"duration_ms", time.Since(start).Milliseconds())

	return stored.Data.ID, nil
}

// duplicateOf reports whether apiErr is Firefly refusing a duplicate hash, and
// returns the id of the stored original.
func duplicateOf(apiErr *APIError) (string, bool) {
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		return "", false
	}
	m := duplicatePattern.FindStringSubmatch(apiErr.Body)
	if m == nil {
		return "", false
	}
	return m[1], true
}
