package trader

import (
	"context"

	"stock-trading-sim-go/internal/apperr"
	"stock-trading-sim-go/internal/models"

	"github.com/shopspring/decimal"
)

// Summary is the valuation of one account.
type Summary struct {
	Balance         decimal.Decimal `json:"balance"`
	PortfolioValue  decimal.Decimal `json:"portfolio_value"`
	NetContribution decimal.Decimal `json:"net_contribution"`
	TotalReturn     decimal.Decimal `json:"total_return"`
}

// PortfolioValue is the sum of quantity times current price over the
// account's positions.
func (e *Engine) PortfolioValue(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	var rows []struct {
		Quantity     int64
		CurrentPrice decimal.Decimal
	}
	err := e.db.WithContext(ctx).Table("positions").
		Select("positions.quantity, listings.current_price").
		Joins("JOIN listings ON listings.ticker = positions.ticker AND listings.deleted_at IS NULL").
		Where("positions.account_id = ?", accountID).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, apperr.Persistence("value portfolio", err)
	}

	value := decimal.Zero
	for _, r := range rows {
		value = value.Add(r.CurrentPrice.Mul(decimal.NewFromInt(r.Quantity)))
	}
	return value.Round(2), nil
}

// NetContribution is total deposits minus total withdrawals.
func (e *Engine) NetContribution(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	var entries []models.LedgerEntry
	err := e.db.WithContext(ctx).
		Select("type", "amount").
		Where("account_id = ? AND type IN ?", accountID, []models.LedgerType{models.LedgerDeposit, models.LedgerWithdraw}).
		Find(&entries).Error
	if err != nil {
		return decimal.Zero, apperr.Persistence("sum contributions", err)
	}

	net := decimal.Zero
	for _, entry := range entries {
		if entry.Type == models.LedgerDeposit {
			net = net.Add(entry.Amount)
		} else {
			net = net.Sub(entry.Amount)
		}
	}
	return net, nil
}

// TotalReturn is balance plus portfolio value minus net contribution.
func (e *Engine) TotalReturn(ctx context.Context, accountID uint) (decimal.Decimal, error) {
	s, err := e.Summary(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.TotalReturn, nil
}

// Summary computes every valuation figure of the account.
func (e *Engine) Summary(ctx context.Context, accountID uint) (Summary, error) {
	var account models.Account
	if err := e.db.WithContext(ctx).Select("id", "balance").First(&account, accountID).Error; err != nil {
		return Summary{}, apperr.Persistence("load account", notFound(err, apperr.ErrAccountNotFound))
	}
	value, err := e.PortfolioValue(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	net, err := e.NetContribution(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}

	return Summary{
		Balance:         account.Balance,
		PortfolioValue:  value,
		NetContribution: net,
		TotalReturn:     account.Balance.Add(value).Sub(net),
	}, nil
}
