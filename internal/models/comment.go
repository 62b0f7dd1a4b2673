package models

// Comment is a plain append-only discussion record attached to a market.
type Comment struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	MarketID string `gorm:"type:varchar(32);not null;index"`
	TxID     string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Author   string `gorm:"type:varchar(64);not null;index"`
	Content  string `gorm:"type:text"`

	Timestamp int64 `gorm:"not null;index"`
}

func (Comment) TableName() string {
	return "comments"
}
