package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an account's aggregate holding in one ticker. A position is
// never stored with a zero quantity: it is deleted instead.
type Position struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	AccountID   uint            `gorm:"uniqueIndex:idx_account_ticker;not null" json:"account_id"`
	Ticker      string          `gorm:"size:5;uniqueIndex:idx_account_ticker;not null" json:"ticker"`
	ListingID   uint            `gorm:"not null" json:"listing_id"`
	StockName   string          `gorm:"size:120" json:"stock_name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"` // last transaction price
	LastOrderID uint            `json:"last_order_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
