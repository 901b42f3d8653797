package database

import (
	"fmt"

	"booking-app/config"
	"booking-app/internal/domain/agent"
	"booking-app/internal/domain/billing"
	"booking-app/internal/domain/booking"
	"booking-app/internal/domain/catalog"
	"booking-app/internal/domain/tenants"
	"booking-app/internal/domain/users"
	"booking-app/internal/infra/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models lists every table AutoMigrate manages.
func Models() []interface{} {
	return []interface{}{
		// tenants
		&tenants.Tenant{},
		&tenants.Secret{},
		&users.User{},
		&users.VerificationToken{},

		// catalog
		&catalog.Segment{},
		&catalog.Tier{},
		&catalog.Service{},
		&catalog.AvailabilityRule{},
		&catalog.BlackoutDate{},

		// bookings
		&booking.Customer{},
		&booking.Booking{},

		// payments
		&billing.Payment{},
		&billing.WebhookEvent{},

		// agents
		&agent.Proposal{},
	}
}

// indexes gorm tags cannot express.
var indexes = []string{
	// One live DATE booking per tenant and day.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_date_exclusive
		ON bookings (tenant_id, date) WHERE type = 'DATE' AND status <> 'CANCELED'`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_pending_created
		ON bookings (created_at) WHERE status = 'PENDING'`,
}

func Open(dsn string) (*gorm.DB, error) {
	level := gormlogger.Warn
	if !config.IsProduction() {
		level = gormlogger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	// required for gen_random_uuid()
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("enable pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func InitDB() {
	db, err := Open(config.DB_URL)
	if err != nil {
		logger.L.Fatal("failed to connect to database", zap.Error(err))
	}
	DB = db

	if err := Migrate(DB); err != nil {
		logger.L.Fatal("migration failed", zap.Error(err))
	}

	logger.L.Info("connected and migrated")
}
