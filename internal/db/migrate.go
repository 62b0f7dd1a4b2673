package db

import (
	"koumei/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Market{},
		&models.Outcome{},
		&models.Position{},
		&models.Trade{},
		&models.Settlement{},
		&models.Reveal{},
		&models.Verdict{},
		&models.Appeal{},
		&models.Comment{},
		&models.Balance{},
		&models.Sequence{},
	)
}
