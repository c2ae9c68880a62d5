package library

import "errors"

var (
	ErrBookNotFound        = errors.New("book not found")
	ErrDuplicateID         = errors.New("book id already exists")
	ErrBookUnavailable     = errors.New("book is already borrowed")
	ErrNotBorrowed         = errors.New("book is not borrowed")
	ErrNotBorrowedByUser   = errors.New("book is not borrowed by you")
	ErrBorrowLimitExceeded = errors.New("borrow limit reached")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotAdmin            = errors.New("admin only")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
