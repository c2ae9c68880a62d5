package library

import (
	"time"

	"github.com/google/uuid"
)

// BorrowStatus is either Available or Borrowed. The unexported marker method
// keeps the set of statuses closed to this package.
type BorrowStatus interface {
	isBorrowStatus()
}

// Available marks a book that can be borrowed.
type Available struct{}

// Borrowed records who holds a book and since when.
type Borrowed struct {
	Borrower string    `json:"borrower"`
	Since    time.Time `json:"since"`
}

func (Available) isBorrowStatus() {}
func (Borrowed) isBorrowStatus()  {}

// Book represents metadata and current borrow status of a book in the catalog.
type Book struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Author string       `json:"author"`
	Status BorrowStatus
}

// Loan returns the borrow record when the book is out.
func (b Book) Loan() (Borrowed, bool) {
	l, ok := b.Status.(Borrowed)
	return l, ok
}

// IsAvailable reports whether the book can be borrowed right now.
func (b Book) IsAvailable() bool {
	_, ok := b.Status.(Available)
	return ok
}

// User represents a registered account.
type User struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // Don't serialize password hash
}

// Action is the kind of state change a TransactionRecord describes.
type Action string

const (
	ActionBorrowed     Action = "Borrowed"
	ActionReturned     Action = "Returned"
	ActionDonated      Action = "Donated"
	ActionAddedByAdmin Action = "Added by Admin"
)

// TransactionRecord is one immutable ledger entry. Title is a snapshot taken
// when the action happened.
type TransactionRecord struct {
	Ref       uuid.UUID `json:"ref"`
	BookID    int64     `json:"book_id"`
	Title     string    `json:"title"`
	Action    Action    `json:"action"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

// FineBalance is the accumulated fine of one user.
type FineBalance struct {
	Username string `json:"username" db:"username"`
	Amount   int    `json:"amount" db:"amount"`
}

// Policy holds the lending rules.
type Policy struct {
	MaxActiveBorrows int
	GracePeriodDays  int
	FinePerDay       int
}

// DefaultPolicy allows three books at a time, seven free days and one unit of
// fine per overdue day.
func DefaultPolicy() Policy {
	return Policy{
		MaxActiveBorrows: 3,
		GracePeriodDays:  7,
		FinePerDay:       1,
	}
}

// withDefaults replaces each out-of-range rule with its DefaultPolicy value.
// The zero Policy means DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p == (Policy{}) {
		return def
	}
	if p.MaxActiveBorrows < 1 {
		p.MaxActiveBorrows = def.MaxActiveBorrows
	}
	if p.GracePeriodDays < 0 {
		p.GracePeriodDays = def.GracePeriodDays
	}
	if p.FinePerDay < 1 {
		p.FinePerDay = def.FinePerDay
	}
	return p
}
