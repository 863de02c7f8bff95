package models

import (
	"log"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Company{}, &Warehouse{},
		&Product{}, &Image{},
		&Order{}, &OrderLine{}, &Document{},
		&InventoryTransaction{}, &FinanceEntry{},
		&FulfillmentEventRecord{}, &IdempotencyKey{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
