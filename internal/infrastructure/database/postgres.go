package database

import (
	"context"
	"fmt"
	"time"

	"github.com/casbin/gorm-adapter/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Schema holds every kioskpay table in Postgres
const Schema = "kiosk"

// Pool limits for the ledger connection. A kiosk writes a handful of rows
// per donation.
const (
	maxOpenConns    = 10
	maxIdleConns    = 2
	connMaxLifetime = 30 * time.Minute
)

// Open connects to Postgres, checks the connection and applies pool limits
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to reach ledger database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates the schema, the ledger tables and casbin_rule
func AutoMigrate(db *gorm.DB, models ...interface{}) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + Schema).Error; err != nil {
			return fmt.Errorf("failed to create schema %s: %w", Schema, err)
		}
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate ledger tables: %w", err)
	}

	if _, err := gormadapter.NewAdapterByDB(db); err != nil {
		return fmt.Errorf("failed to create casbin_rule: %w", err)
	}
	return nil
}
