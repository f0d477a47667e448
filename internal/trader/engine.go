package trader

import (
	"context"
	"errors"
	"math"
	"time"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/catalog"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gate decides whether trading is permitted at an instant.
type Gate interface {
	IsOpen(ctx context.Context, at time.Time) (bool, error)
	// DateOf returns the market date (YYYY-MM-DD) of an instant.
	DateOf(at time.Time) string
}

// OrderRequest is a buy or sell intent.
type OrderRequest struct {
	Side     models.Side `json:"side"`
	Ticker   string      `json:"ticker"`
	Quantity int64       `json:"quantity"`
}

// Engine places orders and moves cash, keeping the ledger, positions and
// listing inventory consistent with every balance change.
type Engine struct {
	logger *zap.Logger
	cfg    config.Trading
	db     *gorm.DB
	gate   Gate
	now    func() time.Time
}

// NewEngine creates a new trading engine.
func NewEngine(logger *zap.Logger, cfg config.Trading, db *gorm.DB, gate Gate) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	return &Engine{
		logger: logger.Named("trader"),
		cfg:    cfg,
		db:     db,
		gate:   gate,
		now:    time.Now,
	}
}

// errConflict signals that a versioned row changed since it was read.
var errConflict = errors.New("optimistic lock conflict")

// PlaceOrder validates and executes an order for the principal's account.
// Preconditions are checked in order and the first failure is returned with
// nothing mutated. On success the order, its ledger entry, the position
// change, the balance change and the listing quantity change are committed
// together.
func (e *Engine) PlaceOrder(ctx context.Context, actor accounts.Principal, req OrderRequest) (*models.Order, error) {
	if err := actor.RequireUser(); err != nil {
		return nil, err
	}

	now := e.now()
	open, err := e.gate.IsOpen(ctx, now)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, apperr.ErrMarketClosed
	}

	if req.Quantity <= 0 {
		return nil, apperr.Invalid("quantity must be a positive whole number")
	}
	if req.Side != models.SideBuy && req.Side != models.SideSell {
		return nil, apperr.Invalid("side must be %s or %s, got %q", models.SideBuy, models.SideSell, req.Side)
	}
	req.Ticker = catalog.NormalizeTicker(req.Ticker)

	l := e.logger.With(
		zap.Uint("account_id", actor.AccountID),
		zap.String("ticker", req.Ticker),
		zap.String("side", string(req.Side)),
		zap.Int64("quantity", req.Quantity),
	)

	var order *models.Order
	err = e.withRetry(ctx, "place order", func(tx *gorm.DB) error {
		var err error
		order, err = e.execute(tx, actor.AccountID, req, e.gate.DateOf(now))
		return err
	})
	if err != nil {
		if apperr.Classified(err) {
			l.Info("Order rejected", zap.Error(err))
		}
		return nil, err
	}

	l.Info("Order executed",
		zap.Uint("order_id", order.ID),
		zap.Stringer("price", order.Price),
		zap.Stringer("total", order.TotalValue))
	return order, nil
}

// execute runs one attempt of an order inside tx.
func (e *Engine) execute(tx *gorm.DB, accountID uint, req OrderRequest, date string) (*models.Order, error) {
	var listing models.Listing
	err := tx.Where("ticker = ?", req.Ticker).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}

	account, err := loadAccount(tx, accountID)
	if err != nil {
		return nil, err
	}

	price := listing.CurrentPrice
	total := price.Mul(decimal.NewFromInt(req.Quantity)).Round(2)

	var (
		balance   decimal.Decimal
		available int64
	)
	switch req.Side {
	case models.SideBuy:
		if total.GreaterThan(account.Balance) {
			return nil, apperr.ErrInsufficientFunds
		}
		if req.Quantity > listing.Quantity {
			return nil, apperr.ErrQuantityExceedsAvailable
		}
		balance = account.Balance.Sub(total)
		available = listing.Quantity - req.Quantity
	case models.SideSell:
		pos, err := findPosition(tx, accountID, req.Ticker)
		if err != nil {
			return nil, err
		}
		if pos == nil {
			return nil, apperr.ErrPositionNotOwned
		}
		if pos.Quantity < req.Quantity {
			return nil, apperr.ErrInsufficientShares
		}
		balance = account.Balance.Add(total)
		if balance.GreaterThan(models.MaxBalance) {
			return nil, apperr.ErrBalanceLimit
		}
		available = listing.Quantity + req.Quantity
	}

	if err := updateVersioned(tx, &models.Account{}, account.ID, account.Version, map[string]any{"balance": balance}); err != nil {
		return nil, err
	}
	if err := updateVersioned(tx, &models.Listing{}, listing.ID, listing.Version, map[string]any{"quantity": available}); err != nil {
		return nil, err
	}

	order := &models.Order{
		AccountID:   accountID,
		ListingID:   listing.ID,
		Ticker:      listing.Ticker,
		CompanyName: listing.Name,
		Side:        req.Side,
		Quantity:    req.Quantity,
		Price:       price,
		TotalValue:  total,
		Status:      models.OrderStatusOpen,
	}
	if err := tx.Create(order).Error; err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		AccountID: accountID,
		OrderID:   &order.ID,
		Type:      ledgerTypeFor(req.Side),
		Amount:    total,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}

	if err := applyOrder(tx, order); err != nil {
		return nil, err
	}
	if err := addVolume(tx, listing.ID, date, price, req.Quantity); err != nil {
		return nil, err
	}
	return order, nil
}

// OrderHistory returns a page of the account's orders, most recent first.
// Pages start at 1.
func (e *Engine) OrderHistory(ctx context.Context, accountID uint, page, limit int) ([]models.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if page-1 > math.MaxInt32/limit {
		return nil, 0, apperr.Invalid("page %d is out of range", page)
	}

	var total int64
	err := e.db.WithContext(ctx).Model(&models.Order{}).Where("account_id = ?", accountID).Count(&total).Error
	if err != nil {
		return nil, 0, apperr.Persistence("count orders", err)
	}

	var orders []models.Order
	err = e.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, apperr.Persistence("list orders", err)
	}
	return orders, total, nil
}

// withRetry runs fn in a transaction, retrying the whole unit of work when a
// versioned update lost a race.
func (e *Engine) withRetry(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		err := e.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, errConflict) {
			if err != nil && !apperr.Classified(err) {
				e.logger.Error("Transaction rolled back", zap.String("op", op), zap.Error(err))
			}
			return apperr.Persistence(op, err)
		}
		e.logger.Warn("Concurrent update detected, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", e.cfg.MaxRetries))
	}
	return apperr.ErrConcurrentUpdate
}

// updateVersioned applies updates to the row id only if its version is
// still version, and bumps the version.
func updateVersioned(tx *gorm.DB, model any, id uint, version int64, updates map[string]any) error {
	updates["version"] = gorm.Expr("version + 1")
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errConflict
	}
	return nil
}

func loadAccount(tx *gorm.DB, id uint) (*models.Account, error) {
	var account models.Account
	if err := tx.First(&account, id).Error; err != nil {
		return nil, notFound(err, apperr.ErrAccountNotFound)
	}
	return &account, nil
}

// notFound replaces gorm.ErrRecordNotFound with target.
func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

// addVolume adds qty to the listing's traded volume for date, opening the
// day at price when no row exists yet.
func addVolume(tx *gorm.DB, listingID uint, date string, price decimal.Decimal, qty int64) error {
	stat := models.DailyStat{
		ListingID: listingID,
		Date:      date,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		Volume:    qty,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{"volume": gorm.Expr("daily_stats.volume + ?", qty)}),
	}).Create(&stat).Error
}

func ledgerTypeFor(side models.Side) models.LedgerType {
	if side == models.SideSell {
		return models.LedgerSell
	}
	return models.LedgerBuy
}
