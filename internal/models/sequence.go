package models

// Sequence is a named monotonically increasing id allocator (market ids).
type Sequence struct {
	Name  string `gorm:"primaryKey;type:varchar(50)"`
	Value int64  `gorm:"not null;default:0"`
}

func (Sequence) TableName() string {
	return "sequences"
}
