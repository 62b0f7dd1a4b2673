package models

import (
	"github.com/shopspring/decimal"
)

// Appeal is a plain append-only dispute record; it carries no invariant
// beyond existence. Quorum delegates act on appeals off-ledger and respond
// with a verdict transaction.
type Appeal struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID string `gorm:"type:varchar(32);not null;index"`
	TxID     string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Appealer string `gorm:"type:varchar(64);not null;index"`

	Content string          `gorm:"type:text"`
	Amount  decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0"`

	Timestamp int64 `gorm:"not null;index"`
}

func (Appeal) TableName() string {
	return "appeals"
}
