package library

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Options configure a LibraryManager.
type Options struct {
	DSN          string
	Policy       Policy
	PasswordCost int
	Logger       *slog.Logger
	Clock        func() time.Time
}

// DefaultOptions runs against a fresh in-memory database with the default
// lending policy.
func DefaultOptions() Options {
	return Options{
		DSN:          MemoryDSN,
		Policy:       DefaultPolicy(),
		PasswordCost: bcrypt.DefaultCost,
	}
}

// LibraryManager is the per-run context: it owns the database and the
// components built on it. Create one per process run and hand it to the
// session layer.
type LibraryManager struct {
	db      *Database
	users   *Directory
	lending *LendingService
}

// NewLibraryManager opens the database and wires the components. It does not
// seed; call Seed for the fixed starting catalog and accounts.
func NewLibraryManager(opts Options) (*LibraryManager, error) {
	if opts.DSN == "" {
		opts.DSN = MemoryDSN
	}
	opts.Policy = opts.Policy.withDefaults()
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	db, err := NewDatabase(opts.DSN)
	if err != nil {
		return nil, err
	}

	return &LibraryManager{
		db:    db,
		users: NewDirectory(db.db, opts.PasswordCost, opts.Logger.With("component", "directory")),
		lending: NewLendingService(db,
			WithPolicy(opts.Policy),
			WithClock(opts.Clock),
			WithLogger(opts.Logger.With("component", "lending")),
		),
	}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

func (lm *LibraryManager) Lending() *LendingService { return lm.lending }
func (lm *LibraryManager) Users() *Directory        { return lm.users }

// ------------------ Seeding ------------------

// SeedBooks is the catalog every run starts with.
var SeedBooks = []Book{
	{ID: 1, Title: "The Hobbit", Author: "J.R.R. Tolkien"},
	{ID: 2, Title: "1984", Author: "George Orwell"},
	{ID: 3, Title: "Pride and Prejudice", Author: "Jane Austen"},
	{ID: 4, Title: "To Kill a Mockingbird", Author: "Harper Lee"},
	{ID: 5, Title: "The Great Gatsby", Author: "F. Scott Fitzgerald"},
}

// SeedAccounts maps the starting usernames to their passwords.
var SeedAccounts = []struct{ Username, Password string }{
	{AdminUsername, "admin123"},
	{"user", "user123"},
}

// Seed loads the starting books and accounts. Seeding writes no ledger
// entries.
func (lm *LibraryManager) Seed() error {
	catalog := NewCatalog(lm.db.db)
	for _, b := range SeedBooks {
		if _, err := catalog.Add(b.ID, b.Title, b.Author); err != nil {
			return fmt.Errorf("seed book %d: %w", b.ID, err)
		}
	}
	for _, a := range SeedAccounts {
		if _, err := lm.users.Register(a.Username, a.Password); err != nil {
			return fmt.Errorf("seed account %s: %w", a.Username, err)
		}
	}
	return nil
}
