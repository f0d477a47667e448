package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/api"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/database"
	"stock-trading-sim-go/internal/logger"
	"stock-trading-sim-go/internal/market"
	"stock-trading-sim-go/internal/pricing"
	"stock-trading-sim-go/internal/stream"
	"stock-trading-sim-go/internal/trader"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("driver", cfg.Database.Driver))

	if cfg.Market.SeedDefaultHours {
		seeded, err := database.SeedDefaultHours(db)
		if err != nil {
			log.Fatal("Failed to seed trading hours", zap.Error(err))
		}
		if seeded {
			log.Info("Seeded default trading hours")
		}
	}

	calendar, err := market.NewCalendar(db, cfg.Market, log)
	if err != nil {
		log.Fatal("Failed to create market calendar", zap.Error(err))
	}
	cat := catalog.NewService(db, log)
	hub := stream.NewHub(log)
	simulator := pricing.NewSimulator(log, cfg.Pricing, db, cat, calendar,
		pricing.NewUniformDrift(cfg.Pricing.Bound, cfg.Pricing.Floor, nil), hub)

	server := api.NewServer(api.Services{
		Accounts: accounts.NewService(db, cfg.Auth, log),
		Catalog:  cat,
		Calendar: calendar,
		Trader:   trader.NewEngine(log, cfg.Trading, db, calendar),
		Pricing:  simulator,
		Stream:   hub,
	}, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting web server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	if cfg.Pricing.Enabled {
		g.Go(func() error {
			return simulator.Run(ctx)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		hub.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer done()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server has been shut down.")
}
