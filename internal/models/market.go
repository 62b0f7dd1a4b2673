package models

import (
	"github.com/shopspring/decimal"
)

// Market lifecycle states. Transitions are one-directional; the verdict path
// may force Finished from any earlier state.
const (
	MarketStateOngoing    int16 = 0
	MarketStateRevealing  int16 = 1
	MarketStateAnnouncing int16 = 2
	MarketStateFinished   int16 = 3
)

// ChoiceUnset marks RevealedChoice/VerdictChoice before a reveal or verdict
// has been recorded.
const ChoiceUnset int32 = -1

type Market struct {
	ID        string `gorm:"primaryKey;type:varchar(32)"`
	TxID      string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Initiator string `gorm:"type:varchar(64);not null;index"`
	Timestamp int64  `gorm:"not null;index"`

	Title       string `gorm:"type:varchar(256);not null"`
	Image       string `gorm:"type:varchar(256);not null"`
	Description string `gorm:"type:text"`

	OutcomeCount   int    `gorm:"not null"`
	Currency       string `gorm:"type:varchar(30);index"`
	LiquidityParam int64  `gorm:"not null"`

	Margin     decimal.Decimal `gorm:"type:numeric(30,8);not null"`
	TotalFunds decimal.Decimal `gorm:"type:numeric(30,8);not null;default:0"`

	EndHeight      int64 `gorm:"not null;index"`
	RevealHeight   int64 `gorm:""`
	RevealedChoice int32 `gorm:"not null;default:-1"`
	VerdictChoice  int32 `gorm:"not null;default:-1"`

	State int16 `gorm:"not null;default:0;index"`
}

func (Market) TableName() string {
	return "markets"
}

// CorrectChoice is the authoritative final outcome once the market is
// finished: a quorum verdict takes precedence over the initiator's reveal.
// Returns ChoiceUnset when neither is recorded.
func (m *Market) CorrectChoice() int32 {
	if m.VerdictChoice >= 0 {
		return m.VerdictChoice
	}
	if m.RevealedChoice >= 0 {
		return m.RevealedChoice
	}
	return ChoiceUnset
}
