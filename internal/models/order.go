package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderStatus is the only mutable attribute of an order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusClosed    OrderStatus = "CLOSED"
)

// Order is the record of one executed buy or sell intent.
type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AccountID   uint            `gorm:"index;not null" json:"account_id"`
	ListingID   uint            `gorm:"index;not null" json:"listing_id"`
	Ticker      string          `gorm:"size:5;not null" json:"ticker"`
	CompanyName string          `gorm:"size:120" json:"company_name"`
	Side        Side            `gorm:"size:4;not null" json:"side"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total_value"`
	Status      OrderStatus     `gorm:"size:9;not null" json:"status"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
