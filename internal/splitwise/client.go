// Package splitwise fetches the current user's expenses from the Splitwise
// v3.0 API.
package splitwise

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"nettracker/internal/cache"
	"nettracker/internal/core"
	"nettracker/internal/log"
)

const (
	DefaultBaseURL   = "https://secure.splitwise.com/api/v3.0"
	DefaultPageLimit = 100
	DefaultMaxPages  = 1

	maxErrorBody = 512
)

// Config holds the client settings. Zero values fall back to defaults.
type Config struct {
	BaseURL     string
	PageLimit   int
	MaxPages    int
	Timeout     time.Duration
	IdentityTTL time.Duration
	// RetryDelay is the wait before the single retry of a rate-limited call.
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to the Splitwise API with a bearer credential supplied per
// call.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	pageLimit  int
	maxPages   int
	retryDelay time.Duration
	identities cache.Cache[int64]
	logger     *log.Logger
}

// rateLimitError marks a 429 response; it is the only retried failure.
type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = DefaultPageLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default(log.ComponentRemote)
	}

	return &Client{
		baseURL:    base,
		http:       httpClient,
		pageLimit:  cfg.PageLimit,
		maxPages:   cfg.MaxPages,
		retryDelay: cfg.RetryDelay,
		identities: cache.New[int64](64, cfg.IdentityTTL),
		logger:     logger.WithComponent(log.ComponentRemote),
	}, nil
}

// CurrentUserID returns the id of the user owning credential.
func (c *Client) CurrentUserID(ctx context.Context, credential string) (int64, error) {
	key := credentialKey(credential)
	if id, ok := c.identities.Get(key); ok {
		return id, nil
	}

	var resp currentUserResponse
	if err := c.getJSON(ctx, credential, "get_current_user", nil, &resp); err != nil {
		return 0, fmt.Errorf("get current user: %w", err)
	}
	if resp.User.ID == 0 {
		return 0, fmt.Errorf("get current user: %w: response has no user id", core.ErrNetwork)
	}

	c.identities.Set(key, resp.User.ID)
	return resp.User.ID, nil
}

// Expenses returns the expenses dated at or after since, following offset
// pagination up to the configured page cap.
func (c *Client) Expenses(ctx context.Context, credential string, since time.Time) ([]core.RemoteExpense, error) {
	var out []core.RemoteExpense
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("dated_after", since.UTC().Format(time.RFC3339))
		q.Set("limit", strconv.Itoa(c.pageLimit))
		if page > 0 {
			q.Set("offset", strconv.Itoa(page*c.pageLimit))
		}

		var resp expensesResponse
		if err := c.getJSON(ctx, credential, "get_expenses", q, &resp); err != nil {
			return nil, fmt.Errorf("get expenses: %w", err)
		}
		for _, e := range resp.Expenses {
			out = append(out, e.toCore())
		}
		if len(resp.Expenses) < c.pageLimit {
			return out, nil
		}
	}

	c.logger.WarnContext(ctx, "Expense listing truncated at page cap",
		"pages", c.maxPages,
		"page_limit", c.pageLimit,
		log.FieldFetched, len(out))
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, credential, path string, query url.Values, out any) error {
	if strings.TrimSpace(credential) == "" {
		return fmt.Errorf("%w: missing API key", core.ErrAuth)
	}

	endpoint := c.baseURL.JoinPath(path)
	endpoint.RawQuery = query.Encode()

	err := retry.Do(
		func() error {
			return c.do(ctx, credential, endpoint.String(), out)
		},
		retry.RetryIf(func(err error) bool {
			var rl *rateLimitError
			if errors.As(err, &rl) {
				c.logger.WarnContext(ctx, "Rate limited, will retry", "path", path, log.FieldError, err)
				return true
			}
			return false
		}),
		retry.Attempts(2),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil && !errors.Is(err, core.ErrAuth) && !errors.Is(err, core.ErrNetwork) {
		err = fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, credential, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "Splitwise response",
		log.FieldPath, req.URL.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: credential rejected (status %d)", core.ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{err: fmt.Errorf("%w: rate limited (status %d)", core.ErrNetwork, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: unexpected status %d: %s", core.ErrNetwork, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", core.ErrNetwork, err)
	}
	return nil
}

// credentialKey avoids keeping raw API keys as cache keys.
func credentialKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}
