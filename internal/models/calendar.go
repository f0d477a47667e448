package models

import "time"

// TradingHours is the open window for one weekday, in minutes after
// midnight of the market time zone.
type TradingHours struct {
	ID          uint         `gorm:"primaryKey" json:"-"`
	Weekday     time.Weekday `gorm:"uniqueIndex;not null" json:"weekday"`
	OpenMinute  int          `gorm:"not null" json:"open_minute"`
	CloseMinute int          `gorm:"not null" json:"close_minute"`
	UpdatedBy   uint         `json:"updated_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Holiday closes the market for a whole date.
type Holiday struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Date      string    `gorm:"size:10;uniqueIndex;not null" json:"date"` // YYYY-MM-DD
	Reason    string    `gorm:"size:255" json:"reason"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
