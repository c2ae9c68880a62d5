package library

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// bookRow mirrors the books table. Borrower and BorrowedAt are either both
// NULL or both set; the CHECK constraint on the table guarantees it.
type bookRow struct {
	Pos        int64          `db:"pos"`
	ID         int64          `db:"id"`
	Title      string         `db:"title"`
	Author     string         `db:"author"`
	Borrower   sql.NullString `db:"borrower"`
	BorrowedAt sql.NullInt64  `db:"borrowed_at"`
}

func (r bookRow) toBook() Book {
	b := Book{ID: r.ID, Title: r.Title, Author: r.Author, Status: Available{}}
	if r.Borrower.Valid && r.BorrowedAt.Valid {
		b.Status = Borrowed{Borrower: r.Borrower.String, Since: time.Unix(0, r.BorrowedAt.Int64)}
	}
	return b
}

var bookColumns = []interface{}{"pos", "id", "title", "author", "borrower", "borrowed_at"}

// Catalog owns the books and their borrow status. It works against either
// the database or a running transaction.
type Catalog struct {
	q sqlx.Ext
}

// NewCatalog binds a Catalog to q (a *sqlx.DB or *sqlx.Tx).
func NewCatalog(q sqlx.Ext) *Catalog {
	return &Catalog{q: q}
}

// List returns every book in insertion order.
func (c *Catalog) List() ([]Book, error) {
	return c.selectBooks(dialect.From("books").Select(bookColumns...).Order(goqu.I("pos").Asc()))
}

// BorrowedBy returns the books currently held by username.
func (c *Catalog) BorrowedBy(username string) ([]Book, error) {
	return c.selectBooks(dialect.From("books").Select(bookColumns...).
		Where(goqu.Ex{"borrower": username}).
		Order(goqu.I("pos").Asc()))
}

// Borrowed returns every book that is currently out.
func (c *Catalog) Borrowed() ([]Book, error) {
	return c.selectBooks(dialect.From("books").Select(bookColumns...).
		Where(goqu.C("borrower").IsNotNull()).
		Order(goqu.I("pos").Asc()))
}

func (c *Catalog) selectBooks(ds *goqu.SelectDataset) ([]Book, error) {
	query, err := buildSQL(ds)
	if err != nil {
		return nil, err
	}
	var rows []bookRow
	if err := sqlx.Select(c.q, &rows, query); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	books := make([]Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, r.toBook())
	}
	return books, nil
}

// FindByID fetches a single book.
func (c *Catalog) FindByID(id int64) (Book, error) {
	query, err := buildSQL(dialect.From("books").Select(bookColumns...).Where(goqu.Ex{"id": id}))
	if err != nil {
		return Book{}, err
	}
	var r bookRow
	if err := sqlx.Get(c.q, &r, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Book{}, fmt.Errorf("book %d: %w", id, ErrBookNotFound)
		}
		return Book{}, fmt.Errorf("get book %d: %w", id, err)
	}
	return r.toBook(), nil
}

// Add inserts an available book under the given id.
func (c *Catalog) Add(id int64, title, author string) (Book, error) {
	if _, err := c.q.Exec(`INSERT INTO books(id,title,author) VALUES(?,?,?)`, id, title, author); err != nil {
		if isUniqueViolation(err) {
			return Book{}, fmt.Errorf("book %d: %w", id, ErrDuplicateID)
		}
		return Book{}, fmt.Errorf("add book %d: %w", id, err)
	}
	return Book{ID: id, Title: title, Author: author, Status: Available{}}, nil
}

// NextID is one past the highest id in the catalog, or 1 when it is empty.
func (c *Catalog) NextID() (int64, error) {
	query, err := buildSQL(dialect.From("books").Select(goqu.COALESCE(goqu.MAX("id"), 0)))
	if err != nil {
		return 0, err
	}
	var maxID int64
	if err := sqlx.Get(c.q, &maxID, query); err != nil {
		return 0, fmt.Errorf("next book id: %w", err)
	}
	return maxID + 1, nil
}

// MarkBorrowed flips an available book to borrowed by borrower.
func (c *Catalog) MarkBorrowed(id int64, borrower string, at time.Time) error {
	res, err := c.q.Exec(`UPDATE books SET borrower=?, borrowed_at=? WHERE id=? AND borrower IS NULL`,
		borrower, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("mark book %d borrowed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	// Nothing changed: either the book is missing or it is already out.
	if _, err := c.FindByID(id); err != nil {
		return err
	}
	return fmt.Errorf("book %d: %w", id, ErrBookUnavailable)
}

// MarkReturned makes a borrowed book available again and hands back the
// borrow record it cleared.
func (c *Catalog) MarkReturned(id int64) (Borrowed, error) {
	book, err := c.FindByID(id)
	if err != nil {
		return Borrowed{}, err
	}
	loan, ok := book.Loan()
	if !ok {
		return Borrowed{}, fmt.Errorf("book %d: %w", id, ErrNotBorrowed)
	}

	if _, err := c.q.Exec(`UPDATE books SET borrower=NULL, borrowed_at=NULL WHERE id=?`, id); err != nil {
		return Borrowed{}, fmt.Errorf("mark book %d returned: %w", id, err)
	}
	return loan, nil
}
