package database

import (
	"log"

	"billing-app/config"
	"billing-app/internal/domain/billing"
	"billing-app/internal/domain/plans"
	"billing-app/internal/domain/subscriptions"
	"billing-app/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB opens the postgres connection and migrates every domain model.
// The handle is returned, not stored globally, so stores receive it as an
// explicit dependency.
func InitDB() *gorm.DB {
	dsn := config.DB_URL
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Duplicate-key detection backs the one-record-per-user guarantee
		// and webhook replay suppression.
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}

	return db
}

// Migrate applies the schema for all domain models. Exported so tests can
// run it against their own database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&plans.Plan{},

		&subscriptions.SubscriptionRecord{},
		&subscriptions.WebhookEventRecord{},
		&subscriptions.AdminActionRecord{},

		&billing.Payment{},
	)
}
