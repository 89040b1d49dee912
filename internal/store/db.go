package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// Retry bounds how long Open waits for the database to become reachable.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// Open creates a Postgres connection pool and pings it until it answers or the
// retry budget is spent.
func Open(ctx context.Context, connString string, maxOpen int, retry Retry, log logrus.FieldLogger) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(time.Hour)

	if err := ping(ctx, db, retry, log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{Client: db}, nil
}

func ping(ctx context.Context, db *sql.DB, retry Retry, log logrus.FieldLogger) error {
	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}
	var err error
	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == retry.Attempts {
			break
		}
		log.WithError(err).Warnf("database connection failed (attempt %d/%d)", attempt, retry.Attempts)
		select {
		case <-time.After(retry.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", retry.Attempts, err)
}

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
