package library

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

const day = 24 * time.Hour

// Actor is the user an operation runs on behalf of. IsAdmin is resolved by
// the session layer before the call.
type Actor struct {
	Username string
	IsAdmin  bool
}

// BorrowReceipt describes a successful borrow.
type BorrowReceipt struct {
	Book   Book
	Record TransactionRecord
}

// ReturnReceipt describes the outcome of a return. When Cancelled is set no
// state changed and only Book is filled in.
type ReturnReceipt struct {
	Book        Book
	Cancelled   bool
	ElapsedDays int
	OverdueDays int
	Fine        int
	Record      TransactionRecord
}

// Option configures a LendingService.
type Option func(*LendingService)

// WithPolicy replaces DefaultPolicy. Rules that are out of range (no books
// allowed, negative grace, no fine) keep their default value.
func WithPolicy(p Policy) Option {
	return func(s *LendingService) { s.policy = p.withDefaults() }
}

// WithClock replaces time.Now. The clock is read once per operation.
func WithClock(now func() time.Time) Option {
	return func(s *LendingService) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *LendingService) { s.logger = logger }
}

// LendingService runs the borrow/return/donate/add operations against the
// Catalog, Ledger and FineBook. Every state-changing operation is one
// database transaction; it performs no terminal I/O.
type LendingService struct {
	db      *Database
	catalog *Catalog
	ledger  *Ledger
	fines   *FineBook

	policy Policy
	now    func() time.Time
	logger *slog.Logger
}

func NewLendingService(db *Database, opts ...Option) *LendingService {
	s := &LendingService{
		db:      db,
		catalog: NewCatalog(db.db),
		ledger:  NewLedger(db.db),
		fines:   NewFineBook(db.db),
		policy:  DefaultPolicy(),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the rules the service enforces.
func (s *LendingService) Policy() Policy { return s.policy }

// ------------------ Operations ------------------

// Borrow lends bookID to username.
//
// The borrow limit is checked before the book is looked up, so a user at the
// limit gets ErrBorrowLimitExceeded even for an unknown id. A book that is
// already out yields ErrBookUnavailable, also when username holds it.
func (s *LendingService) Borrow(username string, bookID int64) (BorrowReceipt, error) {
	now := s.now()
	var receipt BorrowReceipt

	err := s.db.InTx(func(tx *sqlx.Tx) error {
		catalog, ledger := NewCatalog(tx), NewLedger(tx)

		held, err := catalog.BorrowedBy(username)
		if err != nil {
			return err
		}
		if len(held) >= s.policy.MaxActiveBorrows {
			return fmt.Errorf("%s holds %d books: %w", username, len(held), ErrBorrowLimitExceeded)
		}

		book, err := catalog.FindByID(bookID)
		if err != nil {
			return err
		}
		if !book.IsAvailable() {
			return fmt.Errorf("book %d: %w", bookID, ErrBookUnavailable)
		}

		if err := catalog.MarkBorrowed(bookID, username, now); err != nil {
			return err
		}
		rec, err := ledger.Append(book.ID, book.Title, ActionBorrowed, username, now)
		if err != nil {
			return err
		}

		book.Status = Borrowed{Borrower: username, Since: now}
		receipt = BorrowReceipt{Book: book, Record: rec}
		return nil
	})

	s.logOutcome("borrow", err, "user", username, "book_id", bookID)
	if err != nil {
		return BorrowReceipt{}, err
	}
	return receipt, nil
}

// Return takes bookID back from username. Without confirmation the call is
// a no-op and the receipt is marked Cancelled.
//
// Fines are computed from whole elapsed days minus the grace period and are
// added before the borrow record is cleared.
func (s *LendingService) Return(username string, bookID int64, confirmed bool) (ReturnReceipt, error) {
	now := s.now()
	var receipt ReturnReceipt

	err := s.db.InTx(func(tx *sqlx.Tx) error {
		catalog, ledger, fines := NewCatalog(tx), NewLedger(tx), NewFineBook(tx)

		book, err := catalog.FindByID(bookID)
		if err != nil {
			return err
		}
		loan, ok := book.Loan()
		if !ok || loan.Borrower != username {
			return fmt.Errorf("book %d: %w", bookID, ErrNotBorrowedByUser)
		}

		if !confirmed {
			receipt = ReturnReceipt{Book: book, Cancelled: true}
			return nil
		}

		elapsed := int(now.Sub(loan.Since) / day)
		overdue := elapsed - s.policy.GracePeriodDays
		if overdue < 0 {
			overdue = 0
		}
		fine := overdue * s.policy.FinePerDay
		if fine > 0 {
			if err := fines.AddFine(username, fine); err != nil {
				return err
			}
		}

		if _, err := catalog.MarkReturned(bookID); err != nil {
			return err
		}
		rec, err := ledger.Append(book.ID, book.Title, ActionReturned, username, now)
		if err != nil {
			return err
		}

		book.Status = Available{}
		receipt = ReturnReceipt{
			Book:        book,
			ElapsedDays: elapsed,
			OverdueDays: overdue,
			Fine:        fine,
			Record:      rec,
		}
		return nil
	})

	s.logOutcome("return", err, "user", username, "book_id", bookID,
		"cancelled", receipt.Cancelled, "fine", receipt.Fine)
	if err != nil {
		return ReturnReceipt{}, err
	}
	return receipt, nil
}

// Donate adds a book under the next free id on behalf of username.
func (s *LendingService) Donate(username, title, author string) (Book, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return Book{}, fmt.Errorf("title and author are required: %w", ErrInvalidInput)
	}

	now := s.now()
	var book Book
	err := s.db.InTx(func(tx *sqlx.Tx) error {
		catalog, ledger := NewCatalog(tx), NewLedger(tx)

		id, err := catalog.NextID()
		if err != nil {
			return err
		}
		if book, err = catalog.Add(id, title, author); err != nil {
			return err
		}
		_, err = ledger.Append(book.ID, book.Title, ActionDonated, username, now)
		return err
	})

	s.logOutcome("donate", err, "user", username, "book_id", book.ID)
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// AdminAddBook adds a book under a caller-chosen id. actor must be an admin.
func (s *LendingService) AdminAddBook(actor Actor, id int64, title, author string) (Book, error) {
	if !actor.IsAdmin {
		err := fmt.Errorf("%s: %w", actor.Username, ErrNotAdmin)
		s.logOutcome("admin add", err, "user", actor.Username, "book_id", id)
		return Book{}, err
	}

	now := s.now()
	var book Book
	err := s.db.InTx(func(tx *sqlx.Tx) error {
		catalog, ledger := NewCatalog(tx), NewLedger(tx)

		var err error
		if book, err = catalog.Add(id, title, author); err != nil {
			return err
		}
		_, err = ledger.Append(book.ID, book.Title, ActionAddedByAdmin, actor.Username, now)
		return err
	})

	s.logOutcome("admin add", err, "user", actor.Username, "book_id", id)
	if err != nil {
		return Book{}, err
	}
	return book, nil
}

// ------------------ Read accessors ------------------

func (s *LendingService) Books() ([]Book, error) {
	return s.catalog.List()
}

func (s *LendingService) Book(id int64) (Book, error) {
	return s.catalog.FindByID(id)
}

// BorrowedBooks lists every book that is currently out.
func (s *LendingService) BorrowedBooks() ([]Book, error) {
	return s.catalog.Borrowed()
}

func (s *LendingService) BooksBorrowedBy(username string) ([]Book, error) {
	return s.catalog.BorrowedBy(username)
}

func (s *LendingService) History() ([]TransactionRecord, error) {
	return s.ledger.History()
}

func (s *LendingService) FineOf(username string) (int, error) {
	return s.fines.BalanceOf(username)
}

func (s *LendingService) Fines() ([]FineBalance, error) {
	return s.fines.Balances()
}

// ------------------ Logging ------------------

var outcomeErrors = []error{
	ErrBookNotFound, ErrDuplicateID, ErrBookUnavailable, ErrNotBorrowedByUser,
	ErrBorrowLimitExceeded, ErrInvalidInput, ErrNotAdmin,
}

// IsRejection reports whether err is a business outcome rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range outcomeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *LendingService) logOutcome(op string, err error, attrs ...any) {
	switch {
	case err == nil:
		s.logger.Info(op, attrs...)
	case IsRejection(err):
		s.logger.Info(op+" rejected", append(attrs, "reason", err.Error())...)
	default:
		s.logger.Error(op+" failed", append(attrs, "error", err)...)
	}
}
