package trader

import (
	"context"
	"errors"

	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/models"

	"gorm.io/gorm"
)

// applyOrder folds a persisted order into the account's position for its
// ticker. The latest order price overwrites the position price. A position
// that reaches zero shares is deleted.
//
// Callers have already checked that a SELL does not exceed the held
// quantity. Concurrent orders on one account are serialized by the account
// version check, so positions need no version of their own.
func applyOrder(tx *gorm.DB, order *models.Order) error {
	pos, err := findPosition(tx, order.AccountID, order.Ticker)
	if err != nil {
		return err
	}

	switch order.Side {
	case models.SideBuy:
		if pos == nil {
			return tx.Create(&models.Position{
				AccountID:   order.AccountID,
				Ticker:      order.Ticker,
				ListingID:   order.ListingID,
				StockName:   order.CompanyName,
				Quantity:    order.Quantity,
				Price:       order.Price,
				LastOrderID: order.ID,
			}).Error
		}
		pos.Quantity += order.Quantity
	case models.SideSell:
		if pos == nil {
			return apperr.ErrPositionNotOwned
		}
		pos.Quantity -= order.Quantity
		if pos.Quantity < 0 {
			return apperr.ErrInsufficientShares
		}
		if pos.Quantity == 0 {
			return tx.Delete(pos).Error
		}
	}

	pos.Price = order.Price
	pos.LastOrderID = order.ID
	return tx.Model(pos).Updates(map[string]any{
		"quantity":      pos.Quantity,
		"price":         pos.Price,
		"last_order_id": pos.LastOrderID,
	}).Error
}

// findPosition returns nil when the account holds no shares of ticker.
func findPosition(tx *gorm.DB, accountID uint, ticker string) (*models.Position, error) {
	var pos models.Position
	err := tx.Where("account_id = ? AND ticker = ?", accountID, ticker).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// Positions returns the account's holdings ordered by ticker.
func (e *Engine) Positions(ctx context.Context, accountID uint) ([]models.Position, error) {
	var positions []models.Position
	err := e.db.WithContext(ctx).Where("account_id = ?", accountID).Order("ticker").Find(&positions).Error
	if err != nil {
		return nil, apperr.Persistence("list positions", err)
	}
	return positions, nil
}
