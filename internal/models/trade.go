package models

import (
	"github.com/shopspring/decimal"
)

// Trade is an immutable log entry. ShareDelta is signed (negative = sell);
// Amount is the signed cost charged to (positive) or refunded to (negative)
// the trader, in base currency units.
type Trade struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID    string `gorm:"type:varchar(32);not null;index"`
	TxID        string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Trader      string `gorm:"type:varchar(64);not null;index"`
	ChoiceIndex int32  `gorm:"not null"`

	ShareDelta decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(30,8);not null"`

	Height    int64 `gorm:"not null"`
	Timestamp int64 `gorm:"not null;index"`
}

func (Trade) TableName() string {
	return "trades"
}
