package models

// Reveal is the initiator's announced outcome, one per market.
type Reveal struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID    string `gorm:"type:varchar(32);not null;uniqueIndex"`
	TxID        string `gorm:"type:varchar(64);not null"`
	ChoiceIndex int32  `gorm:"not null"`
	Height      int64  `gorm:"not null"`
}

func (Reveal) TableName() string {
	return "reveals"
}
