// Package market decides whether trading is permitted at a given instant,
// from weekly trading hours and holiday closures.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/config"
	"stock-trading-sim-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultHolidayReason is recorded when a closure is added without a reason.
const DefaultHolidayReason = "Closed by admin"

// Hours is the trading window of one weekday, in minutes after midnight.
type Hours struct {
	Weekday time.Weekday `json:"weekday"`
	Open    int          `json:"open"`
	Close   int          `json:"close"`
}

// Contains reports whether minute falls within the window. Both ends are
// inclusive. A window whose close is before its open wraps past midnight
// when overnight is set and is never open otherwise.
func (h Hours) Contains(minute int, overnight bool) bool {
	if h.Close < h.Open {
		return overnight && (minute >= h.Open || minute <= h.Close)
	}
	return h.Open <= minute && minute <= h.Close
}

func (h Hours) String() string {
	return fmt.Sprintf("%s %s-%s", h.Weekday, FormatClock(h.Open), FormatClock(h.Close))
}

// Status is the gate decision for one instant together with its inputs.
type Status struct {
	Open    bool            `json:"open"`
	At      time.Time       `json:"at"`
	Date    string          `json:"date"`
	Hours   *Hours          `json:"hours,omitempty"`
	Holiday *models.Holiday `json:"holiday,omitempty"`
}

// Calendar evaluates the market gate against the persisted schedule.
type Calendar struct {
	db             *gorm.DB
	loc            *time.Location
	allowOvernight bool
	log            *zap.Logger
}

// NewCalendar creates a calendar evaluating instants in cfg.Timezone.
func NewCalendar(db *gorm.DB, cfg config.Market, log *zap.Logger) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load market timezone %q: %w", cfg.Timezone, err)
	}
	return &Calendar{
		db:             db,
		loc:            loc,
		allowOvernight: cfg.AllowOvernight,
		log:            log.Named("market"),
	}, nil
}

// Location returns the market time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// DateOf returns the market date of at as YYYY-MM-DD.
func (c *Calendar) DateOf(at time.Time) string {
	return at.In(c.loc).Format(DateLayout)
}

// IsOpen reports whether trading is permitted at the given instant.
func (c *Calendar) IsOpen(ctx context.Context, at time.Time) (bool, error) {
	status, err := c.Status(ctx, at)
	if err != nil {
		return false, err
	}
	return status.Open, nil
}

// Status evaluates the gate at the given instant. The market is closed when
// the weekday has no hours or the date is a holiday.
func (c *Calendar) Status(ctx context.Context, at time.Time) (Status, error) {
	local := at.In(c.loc)
	status := Status{At: local, Date: local.Format(DateLayout)}

	hours, ok, err := c.HoursFor(ctx, local.Weekday())
	if err != nil {
		return status, err
	}
	if ok {
		status.Hours = &hours
	}

	holiday, isHoliday, err := c.IsHoliday(ctx, local)
	if err != nil {
		return status, err
	}
	if isHoliday {
		status.Holiday = &holiday
	}

	status.Open = ok && !isHoliday && hours.Contains(local.Hour()*60+local.Minute(), c.allowOvernight)
	return status, nil
}

// HoursFor returns the configured window of weekday, if any.
func (c *Calendar) HoursFor(ctx context.Context, weekday time.Weekday) (Hours, bool, error) {
	var row models.TradingHours
	err := c.db.WithContext(ctx).Where("weekday = ?", weekday).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Hours{}, false, nil
	}
	if err != nil {
		return Hours{}, false, apperr.Persistence("load trading hours", err)
	}
	return Hours{Weekday: row.Weekday, Open: row.OpenMinute, Close: row.CloseMinute}, true, nil
}

// IsHoliday reports whether the calendar day of date, read in date's own
// location, is closed.
func (c *Calendar) IsHoliday(ctx context.Context, date time.Time) (models.Holiday, bool, error) {
	var holiday models.Holiday
	err := c.db.WithContext(ctx).Where("date = ?", date.Format(DateLayout)).First(&holiday).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Holiday{}, false, nil
	}
	if err != nil {
		return models.Holiday{}, false, apperr.Persistence("load holiday", err)
	}
	return holiday, true, nil
}

// SetHours replaces the window of weekday.
func (c *Calendar) SetHours(ctx context.Context, actor accounts.Principal, weekday time.Weekday, open, close int) (Hours, error) {
	if err := actor.RequireAdmin(); err != nil {
		return Hours{}, err
	}
	if weekday < time.Sunday || weekday > time.Saturday {
		return Hours{}, apperr.Invalid("weekday %d is out of range", weekday)
	}
	if !validMinute(open) || !validMinute(close) {
		return Hours{}, apperr.Invalid("time must be between 00:00 and 23:59")
	}
	if close < open && !c.allowOvernight {
		return Hours{}, apperr.Invalid("close time %s is before open time %s", FormatClock(close), FormatClock(open))
	}

	row := models.TradingHours{
		Weekday:     weekday,
		OpenMinute:  open,
		CloseMinute: close,
		UpdatedBy:   actor.AccountID,
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "weekday"}},
		DoUpdates: clause.AssignmentColumns([]string{"open_minute", "close_minute", "updated_by", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return Hours{}, apperr.Persistence("save trading hours", err)
	}

	hours := Hours{Weekday: weekday, Open: open, Close: close}
	c.log.Info("Trading hours set", zap.Stringer("hours", hours), zap.Uint("by", actor.AccountID))
	return hours, nil
}

// ClearHours removes the window of weekday, closing the market that day.
func (c *Calendar) ClearHours(ctx context.Context, actor accounts.Principal, weekday time.Weekday) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Where("weekday = ?", weekday).Delete(&models.TradingHours{}).Error; err != nil {
		return apperr.Persistence("clear trading hours", err)
	}
	c.log.Info("Trading hours cleared", zap.Stringer("weekday", weekday), zap.Uint("by", actor.AccountID))
	return nil
}

// ListHours returns the configured windows from Sunday to Saturday.
func (c *Calendar) ListHours(ctx context.Context) ([]Hours, error) {
	var rows []models.TradingHours
	if err := c.db.WithContext(ctx).Order("weekday").Find(&rows).Error; err != nil {
		return nil, apperr.Persistence("list trading hours", err)
	}
	hours := make([]Hours, 0, len(rows))
	for _, r := range rows {
		hours = append(hours, Hours{Weekday: r.Weekday, Open: r.OpenMinute, Close: r.CloseMinute})
	}
	return hours, nil
}

// AddHoliday closes the market for the calendar day of date.
func (c *Calendar) AddHoliday(ctx context.Context, actor accounts.Principal, date time.Time, reason string) (*models.Holiday, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = DefaultHolidayReason
	}

	holiday := &models.Holiday{
		Date:      date.Format(DateLayout),
		Reason:    reason,
		CreatedBy: actor.AccountID,
	}
	err := c.db.WithContext(ctx).Create(holiday).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.ErrHolidayExists
	}
	if err != nil {
		return nil, apperr.Persistence("save holiday", err)
	}

	c.log.Info("Market closure added", zap.String("date", holiday.Date), zap.String("reason", reason))
	return holiday, nil
}

// RemoveHoliday reopens the calendar day of date.
func (c *Calendar) RemoveHoliday(ctx context.Context, actor accounts.Principal, date time.Time) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	res := c.db.WithContext(ctx).Where("date = ?", date.Format(DateLayout)).Delete(&models.Holiday{})
	if res.Error != nil {
		return apperr.Persistence("delete holiday", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrHolidayNotFound
	}
	return nil
}

// ClearHolidays removes every closure and returns how many were removed.
func (c *Calendar) ClearHolidays(ctx context.Context, actor accounts.Principal) (int64, error) {
	if err := actor.RequireAdmin(); err != nil {
		return 0, err
	}
	res := c.db.WithContext(ctx).Where("1 = 1").Delete(&models.Holiday{})
	if res.Error != nil {
		return 0, apperr.Persistence("clear holidays", res.Error)
	}
	c.log.Info("All market closures cleared", zap.Int64("count", res.RowsAffected), zap.Uint("by", actor.AccountID))
	return res.RowsAffected, nil
}

// ListHolidays returns every closure, most recent date first.
func (c *Calendar) ListHolidays(ctx context.Context) ([]models.Holiday, error) {
	var holidays []models.Holiday
	if err := c.db.WithContext(ctx).Order("date DESC").Find(&holidays).Error; err != nil {
		return nil, apperr.Persistence("list holidays", err)
	}
	return holidays, nil
}

func validMinute(m int) bool {
	return m >= 0 && m < 24*60
}
