package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"online-storefront/internal/config"
)

type DB struct {
	*sql.DB
}

// NewConnection opens a pooled Postgres connection from config
func NewConnection(cfg config.DatabaseConfig) (*DB, error) {
	var dsn string

	// Use full URL if available, otherwise construct from components
	if cfg.URL != "" {
		dsn = cfg.URL
	} else {
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}
