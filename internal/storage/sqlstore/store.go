// Package sqlstore implements the record store on PostgreSQL and MySQL.
//
// Records of every namespace live in one generic table as JSON bodies keyed
// by (namespace, pk); a companion table holds the per-namespace id sequences.
// Filters evaluate against fields of the JSON body, so both backends serve
// the same contract through a small dialect switch.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamforge/schema-registry/internal/storage"
)

// Config holds the connection settings for a SQL-backed store.
type Config struct {
	Driver          string
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a SQL-backed implementation of storage.Store.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens a connection pool for the configured backend and runs the schema
// migrations. Supported drivers are "postgres" and "mysql".
func New(cfg Config) (*Store, error) {
	var d dialect
	switch cfg.Driver {
	case "postgres":
		d = postgresDialect{}
	case "mysql":
		d = mysqlDialect{}
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(d.driverName(), d.dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.createStmts() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

// NextID allocates the next id for the namespace, starting at 1.
func (s *Store) NextID(ctx context.Context, namespace string) (int64, error) {
	return s.dialect.nextID(ctx, s.db, namespace)
}

// Get returns the record stored under the key's value.
func (s *Store) Get(ctx context.Context, key storage.Key) (storage.Record, error) {
	query := fmt.Sprintf(
		`SELECT body FROM registry_records WHERE namespace = %s AND pk = %s`,
		s.dialect.placeholder(1), s.dialect.placeholder(2))

	var body []byte
	err := s.db.QueryRowContext(ctx, query, key.Namespace, key.Value).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", key.Namespace, key.Value, err)
	}
	return storage.DecodeRecord(key.Namespace, body)
}

// Find returns records matching all filters, in insertion order.
func (s *Store) Find(ctx context.Context, namespace string, filters []storage.Filter) ([]storage.Record, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT body FROM registry_records WHERE namespace = `)
	sb.WriteString(s.dialect.placeholder(1))
	args := []interface{}{namespace}
	for _, f := range filters {
		sb.WriteString(" AND ")
		sb.WriteString(s.dialect.filterExpr(f.Column, len(args)+1))
		args = append(args, f.Value)
	}
	sb.WriteString(" ORDER BY seq")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", namespace, err)
	}
	defer rows.Close()

	var result []storage.Record
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("find in %s: %w", namespace, err)
		}
		rec, err := storage.DecodeRecord(namespace, body)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find in %s: %w", namespace, err)
	}
	return result, nil
}

// List returns all records in the namespace in insertion order.
func (s *Store) List(ctx context.Context, namespace string) ([]storage.Record, error) {
	return s.Find(ctx, namespace, nil)
}

// Add inserts a record. Duplicate primary keys map to ErrRecordExists.
func (s *Store) Add(ctx context.Context, record storage.Record) error {
	return s.add(ctx, s.db, record)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) add(ctx context.Context, db execer, record storage.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", record.Namespace(), err)
	}
	key := record.Key()
	query := fmt.Sprintf(
		`INSERT INTO registry_records (namespace, pk, body) VALUES (%s, %s, %s)`,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3))
	if _, err := db.ExecContext(ctx, query, key.Namespace, key.Value, body); err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("%w: %s/%s", storage.ErrRecordExists, key.Namespace, key.Value)
		}
		return fmt.Errorf("add %s/%s: %w", key.Namespace, key.Value, err)
	}
	return nil
}

// AddAll inserts the records in a single transaction.
func (s *Store) AddAll(ctx context.Context, records []storage.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add-all: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		if err := s.add(ctx, tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add-all: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// IsHealthy reports whether the database answers a ping.
func (s *Store) IsHealthy(ctx context.Context) bool {
	return s.db.PingContext(ctx) == nil
}

var _ storage.Store = (*Store)(nil)
