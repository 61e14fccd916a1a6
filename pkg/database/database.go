package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/biblioteca-api/pkg/config"
)

// Open connects to the database selected by the storage driver. The memory
// driver has no database and returns a nil handle.
func Open(storage config.StorageConfig, db config.DatabaseConfig) (*sqlx.DB, error) {
	switch storage.Driver {
	case config.StorageMemory:
		return nil, nil
	case config.StorageSQLite:
		return NewSQLite(storage.SQLitePath)
	case config.StoragePostgres, config.StoragePgx:
		return NewPostgres(db, storage.Driver)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", storage.Driver)
	}
}

// Dialect maps a storage driver onto its SQL builder dialect.
func Dialect(driver string) string {
	if driver == config.StorageSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// NewPostgres returns a configured PostgreSQL client using lib/pq ("postgres")
// or pgx ("pgx").
func NewPostgres(cfg config.DatabaseConfig, driver string) (*sqlx.DB, error) {
	if driver == "" {
		driver = config.StoragePostgres
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// NewSQLite opens (and creates when missing) the local snapshot database.
func NewSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		path = "biblioteca.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
