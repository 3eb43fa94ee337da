package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/xelth-com/parcprepgo/internal/config"
	"github.com/xelth-com/parcprepgo/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps gorm.DB. It is the single shared storage handle: whoever calls
// Connect owns it and must call Close once the last flow is done.
type DB struct {
	*gorm.DB
	driver string
}

// Connect opens the on-device SQLite file or an external PostgreSQL database
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	switch cfg.Driver {
	case "postgres":
		log.Printf("🌐 Mode: [External PostgreSQL] - Connecting to %s:%s\n", cfg.Host, cfg.Port)
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
			cfg.Database,
		)
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetMaxOpenConns(50)
			sqlDB.SetConnMaxLifetime(time.Hour)
		}
		log.Println("✅ Database connection established")
		return &DB{DB: db, driver: "postgres"}, nil

	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		log.Printf("📦 Mode: [SQLite] - Opening %s", cfg.SQLitePath)
		return OpenSQLite(sqliteDSN(cfg.SQLitePath), gormCfg)
	}
}

// OpenSQLite opens a SQLite database through the pure-Go driver.
// A single connection serializes writers so transactions never hit SQLITE_BUSY.
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*DB, error) {
	if gormCfg == nil {
		gormCfg = &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
			NowFunc:        func() time.Time { return time.Now().UTC() },
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &DB{DB: db, driver: "sqlite"}, nil
}

// Migrate triggers GORM schema synchronization for every table this service owns
func (db *DB) Migrate() error {
	if err := db.DB.AutoMigrate(
		&models.ParcPrepFile{},
		&models.ParcPrepStats{},
		&models.Log{},
		&models.SyncHistory{},
	); err != nil {
		return err
	}

	// At most one default file, also across processes sharing a PostgreSQL mirror
	if err := db.DB.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_parc_prep_files_single_default ON parc_prep_files (is_default) WHERE is_default",
	).Error; err != nil {
		return fmt.Errorf("create single default index: %w", err)
	}
	return nil
}

// Driver returns "sqlite" or "postgres"
func (db *DB) Driver() string {
	return db.driver
}

// Close releases the underlying connection pool
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
