package models

import (
	"github.com/shopspring/decimal"
)

// Outcome is one resolution option of a market. Share is the cumulative
// outstanding share quantity for this outcome; only the market ledger's trade
// path mutates it.
type Outcome struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID    string `gorm:"type:varchar(32);not null;uniqueIndex:idx_outcome_market_choice"`
	ChoiceIndex int32  `gorm:"not null;uniqueIndex:idx_outcome_market_choice"`

	Description string          `gorm:"type:varchar(256);not null"`
	Share       decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0"`
}

func (Outcome) TableName() string {
	return "outcomes"
}
