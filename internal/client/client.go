// Package client is a REST client for the trading server's JSON API.
package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"
	"stock-trading-sim-go/internal/trader"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Session is the result of a successful sign in.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *models.Account `json:"account"`
	Redirect  string          `json:"redirect"`
}

// Home is the dashboard of a trading user.
type Home struct {
	Account   *models.Account   `json:"account"`
	Summary   trader.Summary    `json:"summary"`
	Positions []models.Position `json:"positions"`
	Listings  []models.Listing  `json:"listings"`
}

// OrderPage is one page of order history.
type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// Hours is a weekday trading window with HH:MM times.
type Hours struct {
	Day   string `json:"day"`
	Open  string `json:"start_time"`
	Close string `json:"end_time"`
}

// Schedule is the full market calendar.
type Schedule struct {
	Hours    []Hours          `json:"hours"`
	Holidays []models.Holiday `json:"holidays"`
}

// NewListing describes a stock to list.
type NewListing struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Ticker      string          `json:"ticker"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Registration describes a new account.
type Registration struct {
	FullName        string `json:"full_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	SignupCode      string `json:"signup_code,omitempty"`
}

// Client talks to the trading server.
type Client struct {
	client     *resty.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// New creates a client for cfg.BaseURL. A configured token is sent as a
// bearer credential on every request.
func New(cfg config.Client, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	retries := cfg.MaxRetries
	if retries < 1 {
		retries = 1
	}

	return &Client{
		client:     client,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: retries,
		backoff:    time.Second,
	}
}

// SetToken replaces the bearer token used for later requests.
func (c *Client) SetToken(token string) {
	c.client.SetAuthToken(token)
}

// doRequest executes req with rate limiting. Throttled, server side and
// network failures are retried with exponential backoff.
func (c *Client) doRequest(ctx context.Context, method, path string, req *resty.Request) (*resty.Response, error) {
	var (
		resp *resty.Response
		err  error
	)
	req.SetContext(ctx)

	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("path", path))
		resp, err = req.Execute(method, path)
		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		shouldRetry := false
		var retryAfter time.Duration
		if err == nil {
			status := resp.StatusCode()
			switch {
			case status == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case status >= http.StatusInternalServerError:
				shouldRetry = true
			}
			err = apiError(resp)
		} else {
			shouldRetry = true
		}

		if !shouldRetry || i == c.maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, err
}

func apiError(resp *resty.Response) error {
	e := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*APIError); ok && body != nil {
		e.Code = body.Code
		e.Message = body.Message
	}
	return e
}

func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	req := c.client.R().SetError(&APIError{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	_, err := c.doRequest(ctx, method, path, req)
	return err
}

// IsCode reports whether err is an APIError with the given error code.
func IsCode(err error, code string) bool {
	var e *APIError
	return errors.As(err, &e) && e.Code == code
}

// Register creates a trading account, or an admin account when admin is set.
func (c *Client) Register(ctx context.Context, reg Registration, admin bool) (*models.Account, error) {
	path := "/createaccount"
	if admin {
		path = "/createaccount/admin"
	}
	var account models.Account
	if err := c.call(ctx, http.MethodPost, path, reg, &account); err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	return &account, nil
}

// SignIn starts a session and uses its token for later requests.
func (c *Client) SignIn(ctx context.Context, username, password string) (*Session, error) {
	var session Session
	body := map[string]string{"username": username, "password": password}
	if err := c.call(ctx, http.MethodPost, "/signin", body, &session); err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	c.SetToken(session.Token)
	return &session, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPost, "/logout", nil, nil); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}

// Home fetches the caller's dashboard.
func (c *Client) Home(ctx context.Context) (*Home, error) {
	var home Home
	if err := c.call(ctx, http.MethodGet, "/home", nil, &home); err != nil {
		return nil, fmt.Errorf("failed to get home: %w", err)
	}
	return &home, nil
}

// Deposit adds amount to the caller's balance.
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal) (*models.Account, error) {
	return c.moveCash(ctx, "/home/deposit", amount)
}

// Withdraw removes amount from the caller's balance.
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal) (*models.Account, error) {
	return c.moveCash(ctx, "/home/withdraw", amount)
}

func (c *Client) moveCash(ctx context.Context, path string, amount decimal.Decimal) (*models.Account, error) {
	var account models.Account
	if err := c.call(ctx, http.MethodPost, path, map[string]decimal.Decimal{"amount": amount}, &account); err != nil {
		return nil, fmt.Errorf("failed to move cash: %w", err)
	}
	return &account, nil
}

// Buy places a buy order.
func (c *Client) Buy(ctx context.Context, ticker string, quantity int64) (*models.Order, error) {
	return c.order(ctx, "/home/buystock", ticker, quantity)
}

// Sell places a sell order.
func (c *Client) Sell(ctx context.Context, ticker string, quantity int64) (*models.Order, error) {
	return c.order(ctx, "/home/sellstock", ticker, quantity)
}

func (c *Client) order(ctx context.Context, path, ticker string, quantity int64) (*models.Order, error) {
	var order models.Order
	body := map[string]any{"ticker": ticker, "quantity": quantity}
	if err := c.call(ctx, http.MethodPost, path, body, &order); err != nil {
		c.logger.Error("Failed to place order", zap.Error(err), zap.String("ticker", ticker))
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	c.logger.Info("Order placed",
		zap.String("side", string(order.Side)),
		zap.String("ticker", ticker),
		zap.Int64("quantity", order.Quantity),
		zap.String("price", order.Price.StringFixed(2)),
	)
	return &order, nil
}

// Quotes fetches the current price of every listing.
func (c *Client) Quotes(ctx context.Context) ([]catalog.Quote, error) {
	var quotes []catalog.Quote
	if err := c.call(ctx, http.MethodGet, "/api/stock_prices", nil, &quotes); err != nil {
		return nil, fmt.Errorf("failed to get quotes: %w", err)
	}
	return quotes, nil
}

// OrderHistory fetches one page of the caller's orders, newest first.
func (c *Client) OrderHistory(ctx context.Context, page, limit int) (*OrderPage, error) {
	var result OrderPage
	req := c.client.R().
		SetError(&APIError{}).
		SetResult(&result).
		SetQueryParams(map[string]string{
			"page":  strconv.Itoa(page),
			"limit": strconv.Itoa(limit),
		})
	if _, err := c.doRequest(ctx, http.MethodGet, "/home/order_history", req); err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	return &result, nil
}

// Ledger fetches the caller's cash movements, newest first.
func (c *Client) Ledger(ctx context.Context) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := c.call(ctx, http.MethodGet, "/home/ledger", nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}
	return entries, nil
}

// CreateListing lists a new stock. Admin only.
func (c *Client) CreateListing(ctx context.Context, l NewListing) (*models.Listing, error) {
	var listing models.Listing
	if err := c.call(ctx, http.MethodPost, "/home/admin/createstock", l, &listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}
	return &listing, nil
}

// Schedule fetches trading hours and closures. Admin only.
func (c *Client) Schedule(ctx context.Context) (*Schedule, error) {
	var s Schedule
	if err := c.call(ctx, http.MethodGet, "/home/admin/changemkthrs", nil, &s); err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &s, nil
}

// SetHours sets the trading window of day. Admin only.
func (c *Client) SetHours(ctx context.Context, day, open, close string) (*Hours, error) {
	var h Hours
	body := map[string]any{"day": day, "start_time": open, "end_time": close}
	if err := c.call(ctx, http.MethodPost, "/home/admin/changemkthrs", body, &h); err != nil {
		return nil, fmt.Errorf("failed to set hours: %w", err)
	}
	return &h, nil
}

// CloseMarket closes the market on date (YYYY-MM-DD). Admin only.
func (c *Client) CloseMarket(ctx context.Context, date, reason string) (*models.Holiday, error) {
	var h models.Holiday
	body := map[string]string{"holiday_date": date, "reason": reason}
	if err := c.call(ctx, http.MethodPost, "/home/admin/changemktschedule", body, &h); err != nil {
		return nil, fmt.Errorf("failed to close market: %w", err)
	}
	return &h, nil
}

// ReopenMarket removes the closure on date. Admin only.
func (c *Client) ReopenMarket(ctx context.Context, date string) error {
	if err := c.call(ctx, http.MethodDelete, "/home/admin/changemktschedule/"+url.PathEscape(date), nil, nil); err != nil {
		return fmt.Errorf("failed to reopen market: %w", err)
	}
	return nil
}

// OpenAllMarkets removes every closure and returns how many were removed.
// Admin only.
func (c *Client) OpenAllMarkets(ctx context.Context) (int64, error) {
	var result struct {
		Cleared int64 `json:"cleared"`
	}
	if err := c.call(ctx, http.MethodPost, "/home/admin/openallmarkets", nil, &result); err != nil {
		return 0, fmt.Errorf("failed to open markets: %w", err)
	}
	return result.Cleared, nil
}

// Drift runs one price drift tick. Admin only.
func (c *Client) Drift(ctx context.Context) ([]catalog.Quote, error) {
	var quotes []catalog.Quote
	if err := c.call(ctx, http.MethodPost, "/home/admin/drift", nil, &quotes); err != nil {
		return nil, fmt.Errorf("failed to drift prices: %w", err)
	}
	return quotes, nil
}

// Users lists trading users. Admin only.
func (c *Client) Users(ctx context.Context) ([]models.Account, error) {
	var result struct {
		Users []models.Account `json:"users"`
	}
	if err := c.call(ctx, http.MethodGet, "/home/admin", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return result.Users, nil
}

// DeleteUser soft-deletes account id. Admin only.
func (c *Client) DeleteUser(ctx context.Context, id uint) error {
	path := "/home/admin/deleteuser/" + strconv.FormatUint(uint64(id), 10)
	if err := c.call(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
