package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerType classifies a cash movement.
type LedgerType string

const (
	LedgerDeposit  LedgerType = "DEPOSIT"
	LedgerWithdraw LedgerType = "WITHDRAW"
	LedgerBuy      LedgerType = "BUY"
	LedgerSell     LedgerType = "SELL"
)

// LedgerEntry is an immutable cash movement on an account. Amount is always
// a positive magnitude; Type gives the direction.
type LedgerEntry struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID uint            `gorm:"index;not null" json:"account_id"`
	OrderID   *uint           `gorm:"index" json:"order_id,omitempty"`
	Type      LedgerType      `gorm:"size:8;not null" json:"type"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}
