package models

import (
	"bitbucket.org/atolyemoda/satis_backend/config"
)

// MigrateTable auto-migrates every table the engine owns. Run at startup;
// gorm only adds what is missing and never drops columns.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Client{},
		&Product{},
		&Item{},
		&ItemMappingRule{},
		&ItemMappingOutput{},
		&Order{},
		&OrderLineItem{},
		&Payment{},
		&StockMovement{},
		&ImportRun{},
		&ImportRow{},
	)
}
