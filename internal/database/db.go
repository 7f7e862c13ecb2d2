package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options selects and configures the backing SQL engine.
type Options struct {
	Driver string
	Path   string
	URL    string
}

// Initialize opens the database and runs migrations. The returned handle is
// owned by the caller and must be closed with Close at shutdown.
func Initialize(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case "", "sqlite":
		if opts.Path != ":memory:" {
			dir := filepath.Dir(opts.Path)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(opts.Path)
	case "postgres":
		dialector = postgres.Open(opts.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Driver == "" || opts.Driver == "sqlite" {
		// sqlite has a single writer and :memory: databases are per connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&CaseDocument{},
		&StoreDocument{},
	); err != nil {
		return err
	}
	return RunMigrations(db)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func Ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
