package api

import (
	"context"
	"net/http"
	"strconv"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/market"
	"stock-trading-sim-go/internal/models"
	"stock-trading-sim-go/internal/trader"

	"github.com/shopspring/decimal"
)

type homeResponse struct {
	Account   *models.Account   `json:"account"`
	Summary   trader.Summary    `json:"summary"`
	Positions []models.Position `json:"positions"`
	Listings  []models.Listing  `json:"listings"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type orderRequest struct {
	Ticker   string `json:"ticker"`
	Quantity int64  `json:"quantity"`
}

type buyPageResponse struct {
	Market market.Status   `json:"market"`
	Quotes []catalog.Quote `json:"quotes"`
}

type orderHistoryResponse struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := principal(r)

	account, err := s.accounts.Get(ctx, p.AccountID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	summary, err := s.trader.Summary(ctx, p.AccountID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	positions, err := s.trader.Positions(ctx, p.AccountID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	listings, err := s.catalog.Top(ctx, 3)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, homeResponse{
		Account:   account,
		Summary:   summary,
		Positions: positions,
		Listings:  listings,
	})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.moveCash(w, r, s.trader.Deposit)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.moveCash(w, r, s.trader.Withdraw)
}

func (s *Server) moveCash(w http.ResponseWriter, r *http.Request, op func(context.Context, accounts.Principal, decimal.Decimal) (*models.Account, error)) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	account, err := op(r.Context(), principal(r), req.Amount)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

func (s *Server) buyStockPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := s.now()

	status, err := s.calendar.Status(ctx, now)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	quotes, err := s.catalog.Quotes(ctx, s.calendar.DateOf(now))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, buyPageResponse{Market: status, Quotes: quotes})
}

func (s *Server) buyStock(w http.ResponseWriter, r *http.Request) {
	s.placeOrder(w, r, models.SideBuy)
}

func (s *Server) sellStock(w http.ResponseWriter, r *http.Request) {
	s.placeOrder(w, r, models.SideSell)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request, side models.Side) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	order, err := s.trader.PlaceOrder(r.Context(), principal(r), trader.OrderRequest{
		Side:     side,
		Ticker:   req.Ticker,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, order)
}

func (s *Server) orderHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	orders, total, err := s.trader.OrderHistory(r.Context(), principal(r).AccountID, page, limit)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, orderHistoryResponse{Orders: orders, Total: total, Page: page, Limit: limit})
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.trader.Ledger(r.Context(), principal(r).AccountID)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

// stockPrices is a pure read. Prices move on the drift schedule or through
// POST /home/admin/drift.
func (s *Server) stockPrices(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.catalog.Quotes(r.Context(), s.calendar.DateOf(s.now()))
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, quotes)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("%s must be a whole number, got %q", key, raw)
	}
	return n, nil
}
