// Package starling is a client for the account, transaction feed, and
// savings goal endpoints of the Starling Bank public API.
package starling

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
	"unicode"

	"github.com/theirongolddev/roundup/internal/logging"
	"github.com/theirongolddev/roundup/internal/model"
	"github.com/theirongolddev/roundup/internal/week"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the sandbox API root.
	DefaultBaseURL = "https://api-sandbox.starlingbank.com/api/v2"
	// DefaultClientID is sent as the User-Agent.
	DefaultClientID = "github.com/theirongolddev/roundup/1.0"
	// DefaultTimeout bounds each remote call.
	DefaultTimeout = 10 * time.Second

	maxBodySize = 1 << 20 // 1 MB

	// timestampLayout is ISO-8601 with millisecond precision, as the
	// transactions-between endpoint expects.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Operation names used in Failure.Op and logs.
const (
	OpListAccounts      = "list accounts"
	OpListTransactions  = "list transactions"
	OpListSavingsGoals  = "list savings goals"
	OpCreditSavingsGoal = "credit savings goal"
)

// Config holds client settings. Zero values fall back to the defaults.
type Config struct {
	BaseURL    string
	ClientID   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client performs authenticated calls against the API. Every call is a fresh
// request: no retries, no caching.
type Client struct {
	baseURL  string
	clientID string
	timeout  time.Duration
	token    string
	http     *http.Client
	log      *zap.Logger
}

// ValidateToken rejects blank tokens and tokens containing whitespace or
// control characters.
func ValidateToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidToken
	}
	for _, r := range token {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidToken
		}
	}
	return nil
}

// NewClient creates a client for the given access token. The token is
// trimmed and validated before anything else happens.
func NewClient(cfg Config, token string) (*Client, error) {
	token = strings.TrimSpace(token)
	if err := ValidateToken(token); err != nil {
		return nil, validationErr("connect", err)
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, validationErr("connect", fmt.Errorf("invalid base url: %w", err))
	}

	c := &Client{
		baseURL:  base,
		clientID: cfg.ClientID,
		timeout:  cfg.Timeout,
		token:    token,
		http:     cfg.HTTPClient,
		log:      logging.OrNop(cfg.Logger).Named(logging.ComponentGateway),
	}
	if c.clientID == "" {
		c.clientID = DefaultClientID
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

// ListAccounts returns the customer's accounts. An empty list is a failure.
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var resp accountsResponse
	if err := c.do(ctx, OpListAccounts, http.MethodGet, "/accounts", nil, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Accounts) == 0 {
		return nil, emptyErr(OpListAccounts, "accounts")
	}
	return resp.Accounts, nil
}

// ListTransactions returns the feed items of one account category inside w.
// An empty feed is a failure.
func (c *Client) ListTransactions(ctx context.Context, accountUID, categoryUID string, w week.Window) ([]model.FeedItem, error) {
	if accountUID == "" || categoryUID == "" {
		return nil, validationErr(OpListTransactions, errors.New("account and category uid are required"))
	}

	path := fmt.Sprintf("/feed/account/%s/category/%s/transactions-between",
		url.PathEscape(accountUID), url.PathEscape(categoryUID))
	q := url.Values{}
	q.Set("minTransactionTimestamp", w.Min.UTC().Format(timestampLayout))
	q.Set("maxTransactionTimestamp", w.Max.UTC().Format(timestampLayout))

	var resp feedItemsResponse
	if err := c.do(ctx, OpListTransactions, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.FeedItems) == 0 {
		return nil, emptyErr(OpListTransactions, "transactions in the timeframe queried")
	}
	return resp.FeedItems, nil
}

// ListSavingsGoals returns the account's savings goals. An empty list is a
// failure.
func (c *Client) ListSavingsGoals(ctx context.Context, accountUID string) ([]model.SavingsGoal, error) {
	if accountUID == "" {
		return nil, validationErr(OpListSavingsGoals, errors.New("account uid is required"))
	}

	path := fmt.Sprintf("/account/%s/savings-goals", url.PathEscape(accountUID))
	var resp savingsGoalsResponse
	if err := c.do(ctx, OpListSavingsGoals, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.SavingsGoalList) == 0 {
		return nil, emptyErr(OpListSavingsGoals, "savings goals")
	}
	return resp.SavingsGoalList, nil
}

// CreditSavingsGoal moves amt into the goal. transferUID is the idempotency
// key: the server treats a repeated key as the same transfer.
func (c *Client) CreditSavingsGoal(ctx context.Context, accountUID, goalUID, transferUID string, amt model.Amount) error {
	switch {
	case accountUID == "" || goalUID == "":
		return validationErr(OpCreditSavingsGoal, errors.New("account and goal uid are required"))
	case transferUID == "":
		return validationErr(OpCreditSavingsGoal, errors.New("transfer uid is required"))
	case amt.Currency == "":
		return validationErr(OpCreditSavingsGoal, errors.New("currency is required"))
	case amt.MinorUnits <= 0:
		return validationErr(OpCreditSavingsGoal, fmt.Errorf("amount must be positive, got %d", amt.MinorUnits))
	}

	path := fmt.Sprintf("/account/%s/savings-goals/%s/add-money/%s",
		url.PathEscape(accountUID), url.PathEscape(goalUID), url.PathEscape(transferUID))
	return c.do(ctx, OpCreditSavingsGoal, http.MethodPut, path, nil, topUpRequest{Amount: amt}, nil)
}

// do performs one authenticated request bounded by the client timeout and
// decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return validationErr(op, fmt.Errorf("encoding request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return validationErr(op, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.clientID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	//nolint:gosec // host comes from the validated api.base_url setting, paths are fixed
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String(logging.FieldOp, op), zap.Error(err))
		return transportErr(op, 0, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("request done",
		zap.String(logging.FieldOp, op),
		zap.Int(logging.FieldStatus, resp.StatusCode),
		zap.Duration(logging.FieldDuration, time.Since(start)),
	)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return transportErr(op, resp.StatusCode, ErrUnauthorized)
	case http.StatusTooManyRequests:
		return transportErr(op, resp.StatusCode, ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportErr(op, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return transportErr(op, resp.StatusCode, fmt.Errorf("reading response: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return transportErr(op, resp.StatusCode, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}
