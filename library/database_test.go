package library

import (
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(MemoryDSN)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := tempDB(t)
	if err := applyMigrations(db.db); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	var version int
	if err := db.db.Get(&version, `SELECT value FROM meta WHERE key='schema_version'`); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("want schema version %d, got %d", schemaVersion, version)
	}
}

func TestMigrationsReportUnreadableVersion(t *testing.T) {
	db := tempDB(t)
	if _, err := db.db.Exec(`UPDATE meta SET value='not a number' WHERE key='schema_version'`); err != nil {
		t.Fatalf("corrupt version: %v", err)
	}
	if err := applyMigrations(db.db); err == nil {
		t.Fatal("want error for unreadable schema version")
	}
}

func TestSeparateDatabasesDoNotShareState(t *testing.T) {
	a, b := tempDB(t), tempDB(t)
	if _, err := NewCatalog(a.db).Add(1, "Only in A", "Anon"); err != nil {
		t.Fatalf("add: %v", err)
	}
	books, err := NewCatalog(b.db).List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("want empty catalog in second db, got %d books", len(books))
	}
}

func TestLedgerRowsCannotBeChanged(t *testing.T) {
	db := tempDB(t)
	if _, err := NewLedger(db.db).Append(1, "Book", ActionDonated, "user", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := db.db.Exec(`UPDATE transactions SET title='Other'`); err == nil {
		t.Fatalf("update of a ledger row should fail")
	}
	if _, err := db.db.Exec(`DELETE FROM transactions`); err == nil {
		t.Fatalf("delete of a ledger row should fail")
	}
}

func TestFineBalanceCannotShrink(t *testing.T) {
	db := tempDB(t)
	if err := NewFineBook(db.db).AddFine("user", 5); err != nil {
		t.Fatalf("add fine: %v", err)
	}
	if _, err := db.db.Exec(`UPDATE fines SET balance=1 WHERE username='user'`); err == nil {
		t.Fatalf("lowering a balance should fail")
	}
}

func TestBorrowColumnsMustBeSetTogether(t *testing.T) {
	db := tempDB(t)
	if _, err := NewCatalog(db.db).Add(1, "Book", "Author"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := db.db.Exec(`UPDATE books SET borrower='user' WHERE id=1`); err == nil {
		t.Fatalf("borrower without timestamp should violate the check constraint")
	}
	if _, err := db.db.Exec(`UPDATE books SET borrowed_at=1 WHERE id=1`); err == nil {
		t.Fatalf("timestamp without borrower should violate the check constraint")
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := tempDB(t)
	boom := errors.New("boom")

	err := db.InTx(func(tx *sqlx.Tx) error {
		if _, err := NewCatalog(tx).Add(1, "Book", "Author"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	if _, err := NewCatalog(db.db).FindByID(1); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("book should have been rolled back, got %v", err)
	}
}
