package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"disaster-coordination/config"
)

// ErrNotFound is returned when a referenced record does not exist. Callers
// surface it as 404, distinct from a datastore error.
var ErrNotFound = errors.New("record not found")

// Database wraps the MySQL connection for all persistence operations.
type Database struct {
	db *sql.DB
}

// NewDatabase connects to MySQL and verifies the connection.
func NewDatabase(cfg *config.Config) (*Database, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Wait for the database to come up; container startup ordering is
	// not guaranteed.
	deadline := time.Now().Add(60 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := db.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database ping timeout: %w", pingErr)
		}
		log.Printf("Waiting for database: %v", pingErr)
		time.Sleep(time.Second)
	}

	return &Database{db: db}, nil
}

// NewWithDB wraps an existing handle. Tests use it with sqlmock.
func NewWithDB(db *sql.DB) *Database {
	return &Database{db: db}
}

// DB exposes the underlying handle.
func (d *Database) DB() *sql.DB {
	return d.db
}

// Close closes the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// InitSchema creates the tables if they don't exist.
func (d *Database) InitSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS disasters (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			location_name VARCHAR(500) NOT NULL DEFAULT '',
			description TEXT,
			latitude DOUBLE NULL,
			longitude DOUBLE NULL,
			tags JSON NOT NULL,
			owner_id VARCHAR(255) NOT NULL,
			audit_trail JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_disasters_lat_lng (latitude, longitude),
			INDEX idx_disasters_owner (owner_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS resources (
			id VARCHAR(36) PRIMARY KEY,
			disaster_id VARCHAR(36) NULL,
			name VARCHAR(500) NOT NULL,
			type VARCHAR(32) NOT NULL,
			location_name VARCHAR(500) NOT NULL DEFAULT '',
			latitude DOUBLE NULL,
			longitude DOUBLE NULL,
			quantity INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_resources_lat_lng (latitude, longitude),
			INDEX idx_resources_disaster (disaster_id),
			INDEX idx_resources_type (type)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
		`CREATE TABLE IF NOT EXISTS reports (
			id VARCHAR(36) PRIMARY KEY,
			disaster_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			content TEXT,
			image_url VARCHAR(2048) NOT NULL DEFAULT '',
			verification_status VARCHAR(16) NOT NULL DEFAULT 'pending',
			verification_notes TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_reports_disaster (disaster_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Database schema verified/created")
	return nil
}
