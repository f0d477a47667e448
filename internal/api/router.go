// Package api exposes the trading services over HTTP as JSON.
package api

import (
	"net/http"
	"time"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/market"
	"stock-trading-sim-go/internal/pricing"
	"stock-trading-sim-go/internal/trader"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Services are the dependencies of the HTTP handlers.
type Services struct {
	Accounts *accounts.Service
	Catalog  *catalog.Service
	Calendar *market.Calendar
	Trader   *trader.Engine
	Pricing  *pricing.Simulator
	// Stream serves the websocket price feed.
	Stream http.Handler
}

// Server holds the handlers of every route.
type Server struct {
	logger   *zap.Logger
	accounts *accounts.Service
	catalog  *catalog.Service
	calendar *market.Calendar
	trader   *trader.Engine
	pricing  *pricing.Simulator
	stream   http.Handler
	now      func() time.Time
}

// NewServer creates a new Server.
func NewServer(svc Services, logger *zap.Logger) *Server {
	return &Server{
		logger:   logger.Named("api"),
		accounts: svc.Accounts,
		catalog:  svc.Catalog,
		calendar: svc.Calendar,
		trader:   svc.Trader,
		pricing:  svc.Pricing,
		stream:   svc.Stream,
		now:      time.Now,
	}
}

// Routes returns a chi router with every route registered.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogging(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Registration and sessions.
	r.Post("/createaccount", s.createAccount)
	r.Post("/createaccount/admin", s.createAdminAccount)
	r.Post("/signin", s.signIn)
	r.Post("/", s.signIn)
	r.Get("/logout", s.logout)
	r.Post("/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/home", s.home)
		r.Post("/home/deposit", s.deposit)
		r.Post("/home/withdraw", s.withdraw)
		r.Get("/home/buystock", s.buyStockPage)
		r.Post("/home/buystock", s.buyStock)
		r.Post("/home/sellstock", s.sellStock)
		r.Get("/home/order_history", s.orderHistory)
		r.Get("/home/ledger", s.ledger)

		r.Get("/api/stock_prices", s.stockPrices)
		if s.stream != nil {
			r.Handle("/api/stock_prices/stream", s.stream)
		}

		r.Route("/home/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/", s.adminHome)
			r.Post("/createstock", s.createStock)
			r.Get("/changemkthrs", s.marketHours)
			r.Post("/changemkthrs", s.changeMarketHours)
			r.Get("/changemktschedule", s.marketSchedule)
			r.Post("/changemktschedule", s.addClosure)
			r.Delete("/changemktschedule/{date}", s.removeClosure)
			r.Post("/openallmarkets", s.openAllMarkets)
			r.Post("/drift", s.drift)
			r.Post("/updateuser/{id}", s.updateUser)
			r.Post("/deleteuser/{id}", s.deleteUser)
		})
	})

	return r
}
