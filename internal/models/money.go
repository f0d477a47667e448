package models

import "github.com/shopspring/decimal"

// Money columns are decimal(20,2). SQLite stores them as REAL, which only
// keeps about 15 significant digits, so amounts are capped below that.
var (
	// MaxAmount bounds a single cash movement and a share price.
	MaxAmount = decimal.New(1, 12)
	// MaxBalance bounds an account balance.
	MaxBalance = decimal.New(1, 13)
)

// MaxListingQuantity bounds the shares issued for one listing.
const MaxListingQuantity int64 = 1_000_000_000
