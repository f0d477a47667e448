// Package catalog manages the stock listings that can be traded.
package catalog

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// CreateListingRequest is the input of listing creation.
type CreateListingRequest struct {
	Name        string
	Description string
	Ticker      string
	Quantity    int64
	Price       decimal.Decimal
}

// Quote is the public price view of a listing for one market date.
type Quote struct {
	Ticker       string          `json:"ticker"`
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"currentMktPrice"`
	InitialPrice decimal.Decimal `json:"initStockPrice"`
	Available    int64           `json:"available"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Volume       int64           `json:"volume"`
}

// Service reads and creates listings.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewService creates a new catalog service.
func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log.Named("catalog")}
}

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// CreateListing adds a listing with all of its shares available.
func (s *Service) CreateListing(ctx context.Context, actor accounts.Principal, req CreateListingRequest) (*models.Listing, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Ticker = NormalizeTicker(req.Ticker)
	if req.Name == "" || req.Description == "" || req.Ticker == "" {
		return nil, apperr.Invalid("empty fields, name, description, ticker, quantity and price are required")
	}
	if !tickerPattern.MatchString(req.Ticker) {
		return nil, apperr.Invalid("ticker must be 1 to 5 letters, got %q", req.Ticker)
	}
	if req.Quantity <= 0 || !req.Price.IsPositive() {
		return nil, apperr.Invalid("quantity and price must be positive")
	}
	price := req.Price.Round(2)
	if !price.IsPositive() {
		return nil, apperr.Invalid("price must be at least 0.01")
	}
	if price.GreaterThan(models.MaxAmount) {
		return nil, apperr.Invalid("price cannot exceed %s", models.MaxAmount.StringFixed(2))
	}
	if req.Quantity > models.MaxListingQuantity {
		return nil, apperr.Invalid("quantity cannot exceed %d", models.MaxListingQuantity)
	}

	listing := &models.Listing{
		Ticker:       req.Ticker,
		Name:         req.Name,
		Description:  req.Description,
		TotalIssued:  req.Quantity,
		Quantity:     req.Quantity,
		InitialPrice: price,
		CurrentPrice: price,
		CreatedBy:    actor.AccountID,
	}
	err := s.db.WithContext(ctx).Create(listing).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.ErrDuplicateTicker
	}
	if err != nil {
		s.log.Error("Failed to create listing", zap.String("ticker", req.Ticker), zap.Error(err))
		return nil, apperr.Persistence("create listing", err)
	}

	s.log.Info("Listing created",
		zap.String("ticker", listing.Ticker),
		zap.Int64("quantity", listing.Quantity),
		zap.Stringer("price", listing.CurrentPrice))
	return listing, nil
}

// Get returns the listing with the given ticker.
func (s *Service) Get(ctx context.Context, ticker string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.WithContext(ctx).Where("ticker = ?", NormalizeTicker(ticker)).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrListingNotFound
	}
	if err != nil {
		return nil, apperr.Persistence("load listing", err)
	}
	return &listing, nil
}

// List returns every listing ordered by ticker.
func (s *Service) List(ctx context.Context) ([]models.Listing, error) {
	return s.Top(ctx, 0)
}

// Top returns the first n listings by ticker. n <= 0 means no limit.
func (s *Service) Top(ctx context.Context, n int) ([]models.Listing, error) {
	q := s.db.WithContext(ctx).Order("ticker")
	if n > 0 {
		q = q.Limit(n)
	}
	var listings []models.Listing
	if err := q.Find(&listings).Error; err != nil {
		return nil, apperr.Persistence("list listings", err)
	}
	return listings, nil
}

// Quotes returns every listing with its daily range for date (YYYY-MM-DD).
// Listings without a stat row for date report their current price as the
// whole range and zero volume.
func (s *Service) Quotes(ctx context.Context, date string) ([]Quote, error) {
	listings, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var stats []models.DailyStat
	if err := s.db.WithContext(ctx).Where("date = ?", date).Find(&stats).Error; err != nil {
		return nil, apperr.Persistence("list daily stats", err)
	}
	byListing := make(map[uint]models.DailyStat, len(stats))
	for _, st := range stats {
		byListing[st.ListingID] = st
	}

	quotes := make([]Quote, 0, len(listings))
	for _, l := range listings {
		q := Quote{
			Ticker:       l.Ticker,
			Name:         l.Name,
			CurrentPrice: l.CurrentPrice,
			InitialPrice: l.InitialPrice,
			Available:    l.Quantity,
			Open:         l.CurrentPrice,
			High:         l.CurrentPrice,
			Low:          l.CurrentPrice,
		}
		if st, ok := byListing[l.ID]; ok {
			q.Open, q.High, q.Low, q.Volume = st.Open, st.High, st.Low, st.Volume
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}
