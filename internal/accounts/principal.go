package accounts

import (
	"context"

	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/models"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	AccountID uint
	Username  string
	Role      models.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// RequireAdmin returns apperr.ErrForbidden unless p is an admin.
func (p Principal) RequireAdmin() error {
	if p.AccountID == 0 {
		return apperr.ErrUnauthorized
	}
	if !p.IsAdmin() {
		return apperr.ErrForbidden
	}
	return nil
}

// RequireUser returns apperr.ErrForbidden unless p is a trading user.
func (p Principal) RequireUser() error {
	if p.AccountID == 0 {
		return apperr.ErrUnauthorized
	}
	if p.Role != models.RoleUser {
		return apperr.ErrForbidden
	}
	return nil
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
