package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/database"
	"stock-trading-sim-go/internal/market"
	"stock-trading-sim-go/internal/models"
	"stock-trading-sim-go/internal/pricing"
	"stock-trading-sim-go/internal/stream"
	"stock-trading-sim-go/internal/trader"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// testEnv bundles the router with the services behind it.
type testEnv struct {
	router   http.Handler
	calendar *market.Calendar
}

// newTestEnv wires every service over a fresh database. The market is open
// all day every day unless a test changes the schedule.
func newTestEnv(t *testing.T) *testEnv {
	db, err := database.NewInMemory(uuid.NewString())
	require.NoError(t, err)
	log := zap.NewNop()

	cal, err := market.NewCalendar(db, config.Market{Timezone: "UTC"}, log)
	require.NoError(t, err)
	root := accounts.Principal{AccountID: 1, Role: models.RoleAdmin}
	for day := time.Sunday; day <= time.Saturday; day++ {
		_, err := cal.SetHours(context.Background(), root, day, 0, 24*60-1)
		require.NoError(t, err)
	}

	cat := catalog.NewService(db, log)
	hub := stream.NewHub(log)
	srv := NewServer(Services{
		Accounts: accounts.NewService(db, config.Auth{SessionTTL: time.Hour, BcryptCost: bcrypt.MinCost}, log),
		Catalog:  cat,
		Calendar: cal,
		Trader:   trader.NewEngine(log, config.Trading{MaxRetries: 3}, db, cal),
		Pricing: pricing.NewSimulator(log, config.Pricing{Interval: time.Second, Bound: 0.05, Floor: 0.01},
			db, cat, cal, pricing.NewUniformDrift(0.05, 0.01, nil), hub),
		Stream: hub,
	}, log)

	return &testEnv{router: srv.Routes(), calendar: cal}
}

// do sends a JSON request with an optional bearer token.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// signUp registers an account and returns its session token.
func (env *testEnv) signUp(t *testing.T, username string, admin bool) string {
	t.Helper()
	path := "/createaccount"
	if admin {
		path = "/createaccount/admin"
	}
	rr := env.do(t, http.MethodPost, path, "", map[string]string{
		"full_name":        "Test " + username,
		"username":         username,
		"email":            username + "@example.com",
		"password":         "secret",
		"confirm_password": "secret",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/signin", "", map[string]string{"username": username, "password": "secret"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return decode[signInResponse](t, rr).Token
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTradingFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "root", true)
	user := env.signUp(t, "alice", false)

	rr := env.do(t, http.MethodPost, "/home/admin/createstock", admin, map[string]any{
		"name": "Acme Corp", "description": "Anvils", "ticker": "acme", "quantity": 100, "price": "10.00",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/home/deposit", user, map[string]any{"amount": "100.00"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, "/home/buystock", user, map[string]any{"ticker": "ACME", "quantity": 4})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	order := decode[models.Order](t, rr)
	assert.Equal(t, models.SideBuy, order.Side)
	assert.True(t, decimal.NewFromInt(40).Equal(order.TotalValue))

	rr = env.do(t, http.MethodPost, "/home/sellstock", user, map[string]any{"ticker": "ACME", "quantity": 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/home", user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	home := decode[homeResponse](t, rr)
	assert.True(t, decimal.NewFromInt(70).Equal(home.Account.Balance), "balance %s", home.Account.Balance)
	require.Len(t, home.Positions, 1)
	assert.Equal(t, int64(3), home.Positions[0].Quantity)
	assert.True(t, decimal.NewFromInt(30).Equal(home.Summary.PortfolioValue))
	assert.True(t, home.Summary.TotalReturn.IsZero())

	rr = env.do(t, http.MethodGet, "/home/order_history?page=1&limit=10", user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	history := decode[orderHistoryResponse](t, rr)
	assert.Equal(t, int64(2), history.Total)
	assert.Equal(t, models.SideSell, history.Orders[0].Side)

	rr = env.do(t, http.MethodGet, "/home/ledger", user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.LedgerEntry](t, rr), 3)

	rr = env.do(t, http.MethodGet, "/api/stock_prices", user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	quotes := decode[[]catalog.Quote](t, rr)
	require.Len(t, quotes, 1)
	assert.True(t, decimal.NewFromInt(10).Equal(quotes[0].CurrentPrice), "reading prices must not move them")
	assert.Equal(t, int64(5), quotes[0].Volume)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "root", true)
	user := env.signUp(t, "alice", false)
	rr := env.do(t, http.MethodPost, "/home/admin/createstock", admin, map[string]any{
		"name": "Acme", "description": "x", "ticker": "ACME", "quantity": 10, "price": "10",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	testCases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"no session", http.MethodGet, "/home", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"bad token", http.MethodGet, "/home", "nope", nil, http.StatusUnauthorized, "unauthorized"},
		{"user on admin route", http.MethodGet, "/home/admin", user, nil, http.StatusForbidden, "forbidden"},
		{"admin cannot trade", http.MethodPost, "/home/buystock", admin, map[string]any{"ticker": "ACME", "quantity": 1}, http.StatusForbidden, "forbidden"},
		{"malformed amount", http.MethodPost, "/home/deposit", user, map[string]any{"amount": "0"}, http.StatusBadRequest, "validation_error"},
		{"unknown field", http.MethodPost, "/home/deposit", user, map[string]any{"amount": "1", "x": 1}, http.StatusBadRequest, "validation_error"},
		{"insufficient funds", http.MethodPost, "/home/buystock", user, map[string]any{"ticker": "ACME", "quantity": 1}, http.StatusUnprocessableEntity, "insufficient_funds"},
		{"not owned", http.MethodPost, "/home/sellstock", user, map[string]any{"ticker": "ACME", "quantity": 1}, http.StatusUnprocessableEntity, "position_not_owned"},
		{"unknown ticker", http.MethodPost, "/home/buystock", user, map[string]any{"ticker": "NOPE", "quantity": 1}, http.StatusNotFound, "listing_not_found"},
		{"duplicate ticker", http.MethodPost, "/home/admin/createstock", admin, map[string]any{"name": "A", "description": "x", "ticker": "ACME", "quantity": 1, "price": "1"}, http.StatusConflict, "duplicate_ticker"},
		{"bad page", http.MethodGet, "/home/order_history?page=x", user, nil, http.StatusBadRequest, "validation_error"},
		{"bad user id", http.MethodPost, "/home/admin/deleteuser/abc", admin, nil, http.StatusBadRequest, "validation_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, rr.Code, rr.Body.String())
			assert.Equal(t, tc.code, decode[errorResponse](t, rr).Error)
		})
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice", false)

	rr := env.do(t, http.MethodPost, "/", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid_credentials", decode[errorResponse](t, rr).Error)
}

func TestSignIn_SetsCookieAndRedirect(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "root", true)

	rr := env.do(t, http.MethodPost, "/signin", "", map[string]string{"username": "root", "password": "secret"})
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[signInResponse](t, rr)
	assert.Equal(t, "/home/admin", resp.Redirect)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req := httptest.NewRequest(http.MethodGet, "/home/admin", nil)
	req.AddCookie(cookies[0])
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	token := env.signUp(t, "alice", false)

	rr := env.do(t, http.MethodGet, "/logout", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/home", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice", false)

	rr := env.do(t, http.MethodPost, "/createaccount", "", map[string]string{
		"full_name": "A", "username": "alice", "email": "x@example.com", "password": "p", "confirm_password": "p",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "account_exists", decode[errorResponse](t, rr).Error)
}

func TestMarketClosure(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "root", true)
	user := env.signUp(t, "alice", false)

	rr := env.do(t, http.MethodPost, "/home/admin/createstock", admin, map[string]any{
		"name": "Acme", "description": "x", "ticker": "ACME", "quantity": 10, "price": "1",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = env.do(t, http.MethodPost, "/home/deposit", user, map[string]any{"amount": "10"})
	require.Equal(t, http.StatusOK, rr.Code)

	today := env.calendar.DateOf(time.Now())
	rr = env.do(t, http.MethodPost, "/home/admin/changemktschedule", admin, map[string]string{"holiday_date": today})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, market.DefaultHolidayReason, decode[models.Holiday](t, rr).Reason)

	rr = env.do(t, http.MethodPost, "/home/admin/changemktschedule", admin, map[string]string{"holiday_date": today})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodPost, "/home/buystock", user, map[string]any{"ticker": "ACME", "quantity": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "market_closed", decode[errorResponse](t, rr).Error)

	rr = env.do(t, http.MethodGet, "/home/buystock", user, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[buyPageResponse](t, rr)
	assert.False(t, page.Market.Open)
	require.NotNil(t, page.Market.Holiday)

	rr = env.do(t, http.MethodPost, "/home/admin/openallmarkets", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/home/buystock", user, map[string]any{"ticker": "ACME", "quantity": 1})
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestChangeMarketHours(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "root", true)

	rr := env.do(t, http.MethodPost, "/home/admin/changemkthrs", admin, map[string]any{
		"day": "monday", "start_time": "09:30", "end_time": "16:00",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, hoursView{Day: "Monday", Open: "09:30", Close: "16:00"}, decode[hoursView](t, rr))

	rr = env.do(t, http.MethodPost, "/home/admin/changemkthrs", admin, map[string]any{
		"day": "Tue", "start_time": "16:00", "end_time": "09:00",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/home/admin/changemkthrs", admin, map[string]any{"day": "sun", "clear": true})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/home/admin/changemkthrs", admin, map[string]any{
		"close_market": true, "selected_date": "2030-01-01", "close_reason": "New year",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/home/admin/changemkthrs", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[marketHoursResponse](t, rr)
	assert.Len(t, view.Hours, 6)
	require.Len(t, view.Holidays, 1)
	assert.Equal(t, "New year", view.Holidays[0].Reason)

	rr = env.do(t, http.MethodDelete, "/home/admin/changemktschedule/2030-01-01", admin, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodDelete, "/home/admin/changemktschedule/2030-01-01", admin, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "root", true)
	user := env.signUp(t, "alice", false)

	rr := env.do(t, http.MethodGet, "/home/admin", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	home := decode[adminHomeResponse](t, rr)
	require.Len(t, home.Users, 1)
	id := home.Users[0].ID

	rr = env.do(t, http.MethodPost, "/home/admin/updateuser/"+uintString(id), admin, map[string]string{"full_name": "Alice L"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "Alice L", decode[models.Account](t, rr).FullName)

	rr = env.do(t, http.MethodPost, "/home/admin/deleteuser/"+uintString(id), admin, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, "/home", user, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDrift(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signUp(t, "root", true)
	rr := env.do(t, http.MethodPost, "/home/admin/createstock", admin, map[string]any{
		"name": "Acme", "description": "x", "ticker": "ACME", "quantity": 10, "price": "100",
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodPost, "/home/admin/drift", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	quotes := decode[[]catalog.Quote](t, rr)
	require.Len(t, quotes, 1)
	p := quotes[0].CurrentPrice
	assert.True(t, p.GreaterThanOrEqual(decimal.NewFromInt(95)) && p.LessThanOrEqual(decimal.NewFromInt(105)), "price %s", p)
}

func TestWriteServiceError_HidesPersistenceDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	writeServiceError(rr, zap.NewNop(), apperr.Persistence("save", errors.New("connection reset")))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode[errorResponse](t, rr)
	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, body.Message, "connection reset")
}

func uintString(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
