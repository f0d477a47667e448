package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Listing is a tradeable ticker in the stock catalog.
type Listing struct {
	gorm.Model
	Ticker       string          `gorm:"size:5;uniqueIndex;not null" json:"ticker"`
	Name         string          `gorm:"size:120;not null" json:"name"`
	Description  string          `gorm:"size:255" json:"description"`
	TotalIssued  int64           `gorm:"not null" json:"total_issued"`
	Quantity     int64           `gorm:"not null" json:"quantity"` // shares still available to buy
	InitialPrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"initial_price"`
	CurrentPrice decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"current_price"`
	CreatedBy    uint            `json:"created_by"`
	Version      int64           `gorm:"not null;default:0" json:"-"`
}

// DailyStat records a listing's intraday range and traded volume for one
// market date.
type DailyStat struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	ListingID uint            `gorm:"uniqueIndex:idx_listing_date;not null" json:"listing_id"`
	Date      string          `gorm:"size:10;uniqueIndex:idx_listing_date;not null" json:"date"` // YYYY-MM-DD
	Open      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"open"`
	High      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"low"`
	Close     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"close"`
	Volume    int64           `gorm:"not null;default:0" json:"volume"`
}
