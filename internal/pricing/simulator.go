// Package pricing simulates market price drift for every listing.
package pricing

import (
	"context"
	"errors"
	"time"

	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dater maps an instant to its market date (YYYY-MM-DD).
type Dater interface {
	DateOf(at time.Time) string
}

// Publisher receives the quotes produced by each tick.
type Publisher interface {
	Publish(quotes []catalog.Quote)
}

// Simulator applies a price model to every listing and records the daily
// open, high, low and close of each.
type Simulator struct {
	logger    *zap.Logger
	cfg       config.Pricing
	db        *gorm.DB
	catalog   *catalog.Service
	dates     Dater
	model     Model
	publisher Publisher
	now       func() time.Time
}

// NewSimulator creates a simulator. publisher may be nil.
func NewSimulator(logger *zap.Logger, cfg config.Pricing, db *gorm.DB, cat *catalog.Service, dates Dater, model Model, publisher Publisher) *Simulator {
	return &Simulator{
		logger:    logger.Named("pricing"),
		cfg:       cfg,
		db:        db,
		catalog:   cat,
		dates:     dates,
		model:     model,
		publisher: publisher,
		now:       time.Now,
	}
}

// Run ticks every cfg.Interval until ctx is cancelled. A failed tick is
// logged and the loop continues.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Starting price drift loop",
		zap.Duration("interval", s.cfg.Interval),
		zap.String("model", s.model.Name()))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping price drift loop...")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("Price tick failed", zap.Error(err))
			}
		}
	}
}

// Tick moves every listing's price once and returns the resulting quotes.
func (s *Simulator) Tick(ctx context.Context) ([]catalog.Quote, error) {
	date := s.dates.DateOf(s.now())

	var moved int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listings []models.Listing
		if err := tx.Order("ticker").Find(&listings).Error; err != nil {
			return err
		}
		for _, l := range listings {
			next := decimal.Min(s.model.Next(l.CurrentPrice), models.MaxAmount)
			// The version bump makes in-flight orders on this listing
			// retry with the new price.
			err := tx.Model(&models.Listing{}).Where("id = ?", l.ID).Updates(map[string]any{
				"current_price": next,
				"version":       gorm.Expr("version + 1"),
			}).Error
			if err != nil {
				return err
			}
			if err := recordPrice(tx, l.ID, date, l.CurrentPrice, next); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("drift prices", err)
	}

	quotes, err := s.catalog.Quotes(ctx, date)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Prices drifted", zap.Int("listings", moved), zap.String("date", date))

	if s.publisher != nil {
		s.publisher.Publish(quotes)
	}
	return quotes, nil
}

// recordPrice folds next into the listing's stat row for date. The first
// tick of a date opens a fresh row at the previous price.
func recordPrice(tx *gorm.DB, listingID uint, date string, prev, next decimal.Decimal) error {
	var stat models.DailyStat
	err := tx.Where("listing_id = ? AND date = ?", listingID, date).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.DailyStat{
			ListingID: listingID,
			Date:      date,
			Open:      prev,
			High:      decimal.Max(prev, next),
			Low:       decimal.Min(prev, next),
			Close:     next,
		}).Error
	}
	if err != nil {
		return err
	}

	return tx.Model(&stat).Updates(map[string]any{
		"high":  decimal.Max(stat.High, next),
		"low":   decimal.Min(stat.Low, next),
		"close": next,
	}).Error
}
