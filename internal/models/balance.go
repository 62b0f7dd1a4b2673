package models

import (
	"github.com/shopspring/decimal"
)

// Balance is the per-(address, currency) account balance row backing the
// balance ledger collaborator.
type Balance struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Address  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_balance_key"`
	Currency string `gorm:"type:varchar(30);not null;uniqueIndex:idx_balance_key"`

	Amount decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0"`
}

func (Balance) TableName() string {
	return "balances"
}
