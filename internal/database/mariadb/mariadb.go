// Package mariadb reads person records from an external MariaDB roster.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool is a small read-only connection pool to the roster database.
type Pool struct {
	db *sql.DB
}

// NewPool opens and pings the roster database.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("registry DSN is required (REGISTRY_DATABASE_URL)")
	}

	// parseTime keeps DATETIME columns scannable if a roster view exposes them
	db, err := sql.Open("mysql", withParseTime(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

func withParseTime(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing registry connection: %w", err)
		}
	}
	return nil
}
