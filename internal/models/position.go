package models

import (
	"github.com/shopspring/decimal"
)

// Position is an account's held share quantity in one outcome of one market.
// Created lazily on first trade; Share never goes negative (enforced at trade
// time, not by the schema).
type Position struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID    string `gorm:"type:varchar(32);not null;uniqueIndex:idx_position_key;index"`
	Address     string `gorm:"type:varchar(64);not null;uniqueIndex:idx_position_key;index"`
	ChoiceIndex int32  `gorm:"not null;uniqueIndex:idx_position_key"`

	Share decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0"`
}

func (Position) TableName() string {
	return "positions"
}
