package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// MemoryDSN keeps the whole database inside the process; it disappears when
// the last connection closes.
const MemoryDSN = ":memory:"

// dialect builds the SELECT statements used by the stores.
var dialect = goqu.Dialect("sqlite3")

// Database provides high-level helpers around a SQLite connection.
type Database struct {
	db *sqlx.DB
}

// NewDatabase opens the SQLite database described by dsn and applies schema
// migrations. The pool is pinned to a single connection: an in-memory
// database is private to the connection that created it.
func NewDatabase(dsn string) (*Database, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db}, nil
}

// Close closes the DB, dropping all in-memory state.
func (d *Database) Close() error {
	return d.db.Close()
}

// InTx runs fn inside one transaction. The transaction commits only when fn
// returns nil.
func (d *Database) InTx(fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sqlx.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		// pos keeps insertion order; id is the caller-visible book number.
		`CREATE TABLE IF NOT EXISTS books (
            pos INTEGER PRIMARY KEY AUTOINCREMENT,
            id INTEGER NOT NULL UNIQUE,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            borrower TEXT,
            borrowed_at INTEGER,
            CHECK ((borrower IS NULL) = (borrowed_at IS NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS idx_books_borrower ON books(borrower);`,
		`CREATE TABLE IF NOT EXISTS transactions (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            ref TEXT NOT NULL UNIQUE,
            book_id INTEGER NOT NULL,
            title TEXT NOT NULL,
            action TEXT NOT NULL,
            username TEXT NOT NULL,
            occurred_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS fines (
            username TEXT PRIMARY KEY,
            balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0)
        );`,
		`CREATE TABLE IF NOT EXISTS users (
            pos INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL
        );`,
		// The ledger is append-only and fines only grow.
		`CREATE TRIGGER IF NOT EXISTS trg_transactions_bu BEFORE UPDATE ON transactions BEGIN
            SELECT RAISE(ABORT, 'transactions are append-only');
        END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_transactions_bd BEFORE DELETE ON transactions BEGIN
            SELECT RAISE(ABORT, 'transactions are append-only');
        END;`,
		`CREATE TRIGGER IF NOT EXISTS trg_fines_bu BEFORE UPDATE OF balance ON fines
            WHEN new.balance < old.balance BEGIN
            SELECT RAISE(ABORT, 'fines never decrease');
        END;`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func buildSQL(ds interface{ ToSQL() (string, []interface{}, error) }) (string, error) {
	query, _, err := ds.ToSQL()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}
	return query, nil
}
