package Models

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "database.db"
	}

	connection, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	DB = connection

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}

// Migrate runs AutoMigrate in dependency order.
func Migrate(db *gorm.DB) error {
	// 1. Base data with no dependencies
	if err := db.AutoMigrate(
		&User{},
		&PDV{},
		&Routine{},
	); err != nil {
		return err
	}

	// 2. Models with simple foreign key relationships
	if err := db.AutoMigrate(
		&Assignment{}, // Depends on Routine, PDV and User
		&TaskInstance{},
	); err != nil {
		return err
	}

	// 3. Rows hanging off tasks and users
	return db.AutoMigrate(
		&InventoryLine{},
		&PushSubscription{},
		&Notification{},
		&AuditLogEntry{},
	)
}
