package database

import (
	"fmt"
	"time"

	"datalens/internal/models"
	"datalens/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	DSN   string
	Debug bool
}

func Connect(config Config, log *logger.Logger) (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if config.Debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(config.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Database connected")
	return db, nil
}

// Migrate creates the datasets and insights tables. Postgres-specific indexes are
// skipped on other dialects so the same migration runs against sqlite in tests.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Dataset{},
		&models.Insight{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func createIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_datasets_user_created ON datasets(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_datasets_processing_created ON datasets(created_at) WHERE status = 'processing'",
		"CREATE INDEX IF NOT EXISTS idx_insights_dataset_created ON insights(dataset_id, created_at DESC)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
