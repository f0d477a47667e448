// Package apperr defines the error taxonomy shared by the services.
// The api package maps these to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
)

// ValidationError represents empty or malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError from a format string.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// RuleViolation is a well-formed request that breaks a business rule.
// The package-level sentinels are compared by identity with errors.Is.
type RuleViolation struct {
	Code    string
	Message string
}

func (e *RuleViolation) Error() string {
	return e.Message
}

// NotFoundError reports an unknown entity.
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// PersistenceError wraps a failure of the underlying store. The unit of work
// it interrupted has been rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError unless it already belongs to
// the taxonomy, in which case it is returned untouched.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if Classified(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// Classified reports whether err is one of the taxonomy types.
func Classified(err error) bool {
	var (
		v *ValidationError
		r *RuleViolation
		n *NotFoundError
		p *PersistenceError
	)
	return errors.As(err, &v) || errors.As(err, &r) || errors.As(err, &n) || errors.As(err, &p)
}

// Business rule violations.
var (
	ErrInsufficientFunds        = &RuleViolation{Code: "insufficient_funds", Message: "insufficient funds for this transaction"}
	ErrInsufficientShares       = &RuleViolation{Code: "insufficient_shares", Message: "cannot sell more than owned shares"}
	ErrPositionNotOwned         = &RuleViolation{Code: "position_not_owned", Message: "account does not own this stock"}
	ErrMarketClosed             = &RuleViolation{Code: "market_closed", Message: "market is currently closed"}
	ErrQuantityExceedsAvailable = &RuleViolation{Code: "quantity_exceeds_available", Message: "requested quantity exceeds available shares"}
	ErrBalanceLimit             = &RuleViolation{Code: "balance_limit", Message: "the resulting balance exceeds the account limit"}
	ErrDuplicateTicker          = &RuleViolation{Code: "duplicate_ticker", Message: "a listing with this ticker already exists"}
	ErrAccountExists            = &RuleViolation{Code: "account_exists", Message: "username or email already registered"}
	ErrHolidayExists            = &RuleViolation{Code: "holiday_exists", Message: "a market closure already exists for this date"}
	ErrConcurrentUpdate         = &RuleViolation{Code: "concurrent_update", Message: "the request conflicted with a concurrent update, please retry"}
	ErrInvalidCredentials       = &RuleViolation{Code: "invalid_credentials", Message: "invalid credentials"}
	ErrUnauthorized             = &RuleViolation{Code: "unauthorized", Message: "authentication required"}
	ErrForbidden                = &RuleViolation{Code: "forbidden", Message: "not permitted for this account"}
)

// Not found errors.
var (
	ErrAccountNotFound = &NotFoundError{Code: "account_not_found", Message: "account not found"}
	ErrListingNotFound = &NotFoundError{Code: "listing_not_found", Message: "stock not found"}
	ErrHolidayNotFound = &NotFoundError{Code: "holiday_not_found", Message: "no market closure for this date"}
)
