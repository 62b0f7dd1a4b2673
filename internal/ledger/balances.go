// Package ledger is the account balance collaborator: a credit/debit
// primitive over per-(address, currency) rows. Sufficiency checks belong to
// the callers; this layer assumes well-formed amounts.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"koumei/internal/repository"
)

type BalanceLedger struct {
	Repo repository.Repository
}

func (l *BalanceLedger) Get(ctx context.Context, tx *gorm.DB, address, currency string) (decimal.Decimal, error) {
	if tx != nil {
		return l.Repo.GetBalanceTx(ctx, tx, address, currency)
	}
	return l.Repo.GetBalance(ctx, address, currency)
}

func (l *BalanceLedger) Increase(ctx context.Context, tx *gorm.DB, address, currency string, amount decimal.Decimal) error {
	return l.Repo.AddBalanceTx(ctx, tx, address, currency, amount)
}

func (l *BalanceLedger) Decrease(ctx context.Context, tx *gorm.DB, address, currency string, amount decimal.Decimal) error {
	return l.Repo.AddBalanceTx(ctx, tx, address, currency, amount.Neg())
}

// Deposit credits an account outside any event transaction. Used for genesis
// funding and dev seeding only; consensus paths always go through an event.
func (l *BalanceLedger) Deposit(ctx context.Context, address, currency string, amount decimal.Decimal) error {
	return l.Repo.InTx(ctx, func(tx *gorm.DB) error {
		return l.Repo.AddBalanceTx(ctx, tx, address, currency, amount)
	})
}
