// Package traderepublic reads the transaction timeline of a Trade Republic account.
package traderepublic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/trsync/internal/common"
	"github.com/Veraticus/trsync/internal/model"
	"github.com/Veraticus/trsync/internal/service"
)

const (
	// DefaultBaseURL is the Trade Republic web API.
	DefaultBaseURL = "https://api.traderepublic.com"

	loginPath    = "/api/v1/auth/web/login"
	timelinePath = "/api/v1/timeline/transactions"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 16 << 10
)

// Client errors.
var (
	ErrMissingCredentials = errors.New("phone number and pin are required")
	ErrNoCodeProvider     = errors.New("no two-factor code provider configured")
	ErrCursorLoop         = errors.New("timeline cursor repeated")
)

// CodeProvider returns the two-factor code the brokerage sent to the device.
type CodeProvider func(ctx context.Context) (string, error)

// Config holds brokerage connection settings.
type Config struct {
	BaseURL     string
	PhoneNumber string
	PIN         string
	// SessionPath stores the session cookies between runs. Empty disables it.
	SessionPath string
	Timeout     time.Duration
	// MaxAttempts is the number of tries per timeline page. Zero means three.
	MaxAttempts int
}

// StatusError is a non-2xx response from the brokerage.
type StatusError struct {
	Body       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trade republic api error: status %d: %s", e.StatusCode, e.Body)
}

type loginRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	PIN         string `json:"pin"`
}

type loginResponse struct {
	ProcessID          string `json:"processId"`
	CountdownInSeconds int    `json:"countdownInSeconds"`
}

// timelinePage is one page of the feed. File exports use the same envelope.
type timelinePage struct {
	Items   []model.RawTransaction `json:"items"`
	Cursors struct {
		After string `json:"after"`
	} `json:"cursors"`
}

// Client implements service.FeedSource against the brokerage web API.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	codes      CodeProvider
	logger     *slog.Logger
	cfg        Config
	retry      service.RetryOptions
	loggedIn   bool
}

// NewClient builds a client. codes is consulted only when a fresh login is needed.
func NewClient(cfg Config, codes CodeProvider) (*Client, error) {
	if strings.TrimSpace(cfg.PhoneNumber) == "" || strings.TrimSpace(cfg.PIN) == "" {
		return nil, ErrMissingCredentials
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid brokerage url %q: %w", base, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		baseURL:    baseURL,
		codes:      codes,
		logger:     common.Component("traderepublic"),
		cfg:        cfg,
		retry: service.RetryOptions{
			MaxAttempts:  attempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
		},
	}, nil
}

// SetRetryDelay overrides the backoff between page attempts (useful for testing).
func (c *Client) SetRetryDelay(initial, maximum time.Duration) {
	c.retry.InitialDelay = initial
	c.retry.MaxDelay = maximum
}

// Fetch logs in if needed and returns the complete timeline.
func (c *Client) Fetch(ctx context.Context) ([]model.RawTransaction, error) {
	resumed := c.restoreSession()

	if !c.loggedIn && !resumed {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
	}

	items, err := c.timeline(ctx)
	if errors.Is(err, common.ErrUnauthorized) && resumed && !c.loggedIn {
		c.logger.Info("Saved session expired, logging in again")
		c.forgetSession()
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		items, err = c.timeline(ctx)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("Fetched brokerage timeline", "transactions", len(items))
	return items, nil
}

// Login runs the phone/PIN login and completes it with a two-factor code.
func (c *Client) Login(ctx context.Context) error {
	if c.codes == nil {
		return ErrNoCodeProvider
	}

	var started loginResponse
	err := c.doJSON(ctx, http.MethodPost, loginPath, loginRequest{
		PhoneNumber: c.cfg.PhoneNumber,
		PIN:         c.cfg.PIN,
	}, &started)
	if err != nil {
		return fmt.Errorf("failed to start login: %w", err)
	}
	if started.ProcessID == "" {
		return fmt.Errorf("%w: login response has no process id", common.ErrSourceConnection)
	}

	c.logger.Info("Waiting for two-factor code", "expires_in_seconds", started.CountdownInSeconds)

	code, err := c.codes(ctx)
	if err != nil {
		return fmt.Errorf("failed to read two-factor code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: empty two-factor code", common.ErrUnauthorized)
	}

	completePath := loginPath + "/" + url.PathEscape(started.ProcessID) + "/" + url.PathEscape(code)
	if err := c.doJSON(ctx, http.MethodPost, completePath, nil, nil); err != nil {
		return fmt.Errorf("failed to complete login: %w", err)
	}

	c.loggedIn = true
	c.saveSession()
	return nil
}

func (c *Client) timeline(ctx context.Context) ([]model.RawTransaction, error) {
	var (
		items  []model.RawTransaction
		cursor string
		seen   = map[string]bool{}
	)

	for {
		path := timelinePath
		if cursor != "" {
			path += "?" + url.Values{"after": {cursor}}.Encode()
		}

		var page timelinePage
		err := common.WithRetry(ctx, func() error {
			page = timelinePage{}
			return c.doJSON(ctx, http.MethodGet, path, nil, &page)
		}, c.retry)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch timeline: %w", err)
		}

		items = append(items, page.Items...)
		c.logger.Debug("Fetched timeline page", "items", len(page.Items), "total", len(items))

		next := page.Cursors.After
		if next == "" {
			return items, nil
		}
		if seen[next] {
			return nil, fmt.Errorf("%w: %s", ErrCursorLoop, next)
		}
		seen[next] = true
		cursor = next
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return common.Permanent(fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return common.Retryable(fmt.Errorf("%w: %w", common.ErrSourceConnection, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return common.Permanent(fmt.Errorf("%w: %w", common.ErrUnauthorized, statusErr))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return common.Retryable(fmt.Errorf("%w: %w", common.ErrSourceConnection, statusErr))
		default:
			return common.Permanent(fmt.Errorf("%w: %w", common.ErrSourceConnection, statusErr))
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return common.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// restoreSession loads saved cookies into the jar. It reports whether any were loaded.
func (c *Client) restoreSession() bool {
	if c.cfg.SessionPath == "" || c.loggedIn {
		return false
	}

	state, err := loadSessionState(c.cfg.SessionPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("Ignoring unreadable session file", "path", c.cfg.SessionPath, "error", err)
		}
		return false
	}

	cookies := state.httpCookies(time.Now())
	if len(cookies) == 0 {
		return false
	}

	c.httpClient.Jar.SetCookies(c.baseURL, cookies)
	c.logger.Debug("Using saved brokerage session",
		"saved_at", state.SavedAt.Format(time.RFC3339),
		"path", c.cfg.SessionPath)
	return true
}

func (c *Client) saveSession() {
	if c.cfg.SessionPath == "" {
		return
	}
	state := newSessionState(c.cfg.PhoneNumber, c.httpClient.Jar.Cookies(c.baseURL))
	if err := saveSessionState(c.cfg.SessionPath, state); err != nil {
		c.logger.Warn("Failed to save brokerage session", "path", c.cfg.SessionPath, "error", err)
	}
}

func (c *Client) forgetSession() {
	jar, err := cookiejar.New(nil)
	if err == nil {
		c.httpClient.Jar = jar
	}
	if c.cfg.SessionPath == "" {
		return
	}
	if err := removeSessionState(c.cfg.SessionPath); err != nil {
		c.logger.Warn("Failed to remove brokerage session", "path", c.cfg.SessionPath, "error", err)
	}
}
