package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// dialect abstracts the SQL differences between the supported backends.
type dialect interface {
	driverName() string
	dsn(cfg Config) string
	createStmts() []string
	placeholder(n int) string
	// filterExpr returns an equality predicate against a field of the JSON
	// body column, using the n-th placeholder for the value.
	filterExpr(column string, n int) string
	nextID(ctx context.Context, db *sql.DB, namespace string) (int64, error)
	isDuplicate(err error) bool
}

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "postgres" }

func (postgresDialect) dsn(cfg Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode)
}

func (postgresDialect) createStmts() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS registry_records (
			seq       BIGSERIAL,
			namespace VARCHAR(64)  NOT NULL,
			pk        VARCHAR(255) NOT NULL,
			body      JSONB        NOT NULL,
			PRIMARY KEY (namespace, pk)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_registry_records_seq ON registry_records (namespace, seq)`,
		`CREATE TABLE IF NOT EXISTS registry_sequences (
			namespace VARCHAR(64) PRIMARY KEY,
			next_id   BIGINT NOT NULL
		)`,
	}
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) filterExpr(column string, n int) string {
	return fmt.Sprintf("body->>'%s' = $%d", column, n)
}

func (postgresDialect) nextID(ctx context.Context, db *sql.DB, namespace string) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO registry_sequences (namespace, next_id) VALUES ($1, 2)
		 ON CONFLICT (namespace) DO UPDATE SET next_id = registry_sequences.next_id + 1
		 RETURNING next_id - 1`, namespace).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("allocate id for %s: %w", namespace, err)
	}
	return id, nil
}

func (postgresDialect) isDuplicate(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) dsn(cfg Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func (mysqlDialect) createStmts() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS registry_records (
			seq       BIGINT AUTO_INCREMENT,
			namespace VARCHAR(64)  NOT NULL,
			pk        VARCHAR(255) NOT NULL,
			body      JSON         NOT NULL,
			PRIMARY KEY (namespace, pk),
			UNIQUE KEY uk_registry_records_seq (seq)
		)`,
		`CREATE TABLE IF NOT EXISTS registry_sequences (
			namespace VARCHAR(64) PRIMARY KEY,
			next_id   BIGINT NOT NULL
		)`,
	}
}

func (mysqlDialect) placeholder(int) string { return "?" }

func (mysqlDialect) filterExpr(column string, _ int) string {
	return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(body, '$.%s')) = ?", column)
}

func (mysqlDialect) nextID(ctx context.Context, db *sql.DB, namespace string) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("allocate id for %s: %w", namespace, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT IGNORE INTO registry_sequences (namespace, next_id) VALUES (?, 1)`, namespace); err != nil {
		return 0, fmt.Errorf("allocate id for %s: %w", namespace, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_id FROM registry_sequences WHERE namespace = ? FOR UPDATE`, namespace).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocate id for %s: %w", namespace, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE registry_sequences SET next_id = next_id + 1 WHERE namespace = ?`, namespace); err != nil {
		return 0, fmt.Errorf("allocate id for %s: %w", namespace, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("allocate id for %s: %w", namespace, err)
	}
	return id, nil
}

func (mysqlDialect) isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}
