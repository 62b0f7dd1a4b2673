package models

import (
	"github.com/shopspring/decimal"
)

// Settlement is the exactly-once payout record for a (market, address) pair.
// Its existence is the de-duplication fact: a second settle attempt for the
// same pair is rejected. Amount may be negative for the initiator (the
// reserve residual can be a loss).
type Settlement struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID string `gorm:"type:varchar(32);not null;uniqueIndex:idx_settlement_key;index"`
	Address  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_settlement_key;index"`
	TxID     string `gorm:"type:varchar(64);not null"`

	Amount decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	Share  decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0"`

	Timestamp int64 `gorm:"not null;index"`
}

func (Settlement) TableName() string {
	return "settlements"
}
