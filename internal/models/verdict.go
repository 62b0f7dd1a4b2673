package models

import (
	"gorm.io/datatypes"
)

// Verdict is the quorum-signed final outcome, one per market. Signatures holds
// the accepted signature set as a JSON array of 192-hex-char entries.
type Verdict struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement"`
	MarketID    string         `gorm:"type:varchar(32);not null;uniqueIndex"`
	TxID        string         `gorm:"type:varchar(64);not null"`
	ChoiceIndex int32          `gorm:"not null"`
	Signatures  datatypes.JSON `gorm:"type:jsonb"`
}

func (Verdict) TableName() string {
	return "verdicts"
}
