package models

import "time"

// Session is a bearer token issued at sign in.
type Session struct {
	ID        uint      `gorm:"primaryKey"`
	Token     string    `gorm:"size:36;uniqueIndex;not null"`
	AccountID uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Account{},
		&Listing{},
		&DailyStat{},
		&Order{},
		&Position{},
		&LedgerEntry{},
		&TradingHours{},
		&Holiday{},
		&Session{},
	}
}
