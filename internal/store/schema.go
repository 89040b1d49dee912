package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const duplicateDatabase = "42P04"

var encodingPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id    INTEGER PRIMARY KEY,
		name  VARCHAR(100) NOT NULL CHECK (name <> ''),
		class VARCHAR(50)  NOT NULL CHECK (class <> '')
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		student_id INTEGER     NOT NULL REFERENCES students(id),
		date       DATE        NOT NULL,
		status     VARCHAR(10) NOT NULL CHECK (status IN ('Present', 'Absent')),
		PRIMARY KEY (student_id, date)
	)`,
}

// EnsureDatabase creates the named database through an admin connection when it
// does not exist yet. Safe to call on every startup.
func EnsureDatabase(ctx context.Context, admin *sql.DB, name, encoding string, log logrus.FieldLogger) error {
	if name == "" {
		return errors.New("database name required")
	}
	var exists bool
	if err := admin.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check database %q: %w", name, err)
	}
	if exists {
		log.Infof("database %q ensured", name)
		return nil
	}

	stmt := "CREATE DATABASE " + pgx.Identifier{name}.Sanitize()
	if encoding != "" {
		if !encodingPattern.MatchString(encoding) {
			return fmt.Errorf("invalid database encoding %q", encoding)
		}
		stmt += " ENCODING '" + encoding + "'"
	}
	if _, err := admin.ExecContext(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == duplicateDatabase {
			log.Infof("database %q created concurrently", name)
			return nil
		}
		return fmt.Errorf("create database %q: %w", name, err)
	}
	log.Infof("database %q created", name)
	return nil
}

// EnsureTables creates the students and attendance tables when absent.
func EnsureTables(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range tables {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	log.Info("tables 'students' and 'attendance' ensured")
	return nil
}
