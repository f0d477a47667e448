package trader

import (
	"context"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deposit adds amount to the principal's cash balance.
func (e *Engine) Deposit(ctx context.Context, actor accounts.Principal, amount decimal.Decimal) (*models.Account, error) {
	return e.moveCash(ctx, actor, models.LedgerDeposit, amount)
}

// Withdraw removes amount from the principal's cash balance.
func (e *Engine) Withdraw(ctx context.Context, actor accounts.Principal, amount decimal.Decimal) (*models.Account, error) {
	return e.moveCash(ctx, actor, models.LedgerWithdraw, amount)
}

func (e *Engine) moveCash(ctx context.Context, actor accounts.Principal, typ models.LedgerType, amount decimal.Decimal) (*models.Account, error) {
	if actor.AccountID == 0 {
		return nil, apperr.ErrUnauthorized
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var account *models.Account
	err := e.withRetry(ctx, "move cash", func(tx *gorm.DB) error {
		var err error
		account, err = loadAccount(tx, actor.AccountID)
		if err != nil {
			return err
		}

		balance := account.Balance.Add(amount)
		if typ == models.LedgerWithdraw {
			if amount.GreaterThan(account.Balance) {
				return apperr.ErrInsufficientFunds
			}
			balance = account.Balance.Sub(amount)
		}
		if balance.GreaterThan(models.MaxBalance) {
			return apperr.ErrBalanceLimit
		}

		if err := updateVersioned(tx, &models.Account{}, account.ID, account.Version, map[string]any{"balance": balance}); err != nil {
			return err
		}
		account.Balance = balance
		account.Version++

		return tx.Create(&models.LedgerEntry{
			AccountID: account.ID,
			Type:      typ,
			Amount:    amount,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Cash moved",
		zap.Uint("account_id", account.ID),
		zap.String("type", string(typ)),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", account.Balance))
	return account, nil
}

// validateAmount accepts positive amounts up to models.MaxAmount with at
// most two decimal places.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Invalid("amount must be greater than zero")
	}
	if amount.GreaterThan(models.MaxAmount) {
		return apperr.Invalid("amount cannot exceed %s", models.MaxAmount.StringFixed(2))
	}
	if !amount.Equal(amount.Round(2)) {
		return apperr.Invalid("amount cannot have more than two decimal places")
	}
	return nil
}

// Ledger returns the account's cash movements, most recent first.
func (e *Engine) Ledger(ctx context.Context, accountID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := e.db.WithContext(ctx).Where("account_id = ?", accountID).
		Order("created_at DESC").Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, apperr.Persistence("list ledger", err)
	}
	return entries, nil
}
