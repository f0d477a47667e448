package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Role distinguishes trading users from administrators.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account is a registered user or admin. Deleting an account is a soft
// delete so its orders and ledger entries keep their owner.
type Account struct {
	gorm.Model
	FullName      string          `gorm:"size:50;not null" json:"full_name"`
	Username      string          `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email         string          `gorm:"size:50;uniqueIndex;not null" json:"email"`
	AccountNumber string          `gorm:"size:36;uniqueIndex;not null" json:"account_number"`
	PasswordHash  string          `gorm:"size:255;not null" json:"-"`
	Role          Role            `gorm:"size:8;not null;index" json:"role"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	// Version is bumped on every balance change; writers compare it to
	// detect a concurrent update.
	Version int64 `gorm:"not null;default:0" json:"-"`
}
