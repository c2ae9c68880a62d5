package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library-lending/library"
)

func newTestManager(t *testing.T, clock func() time.Time) *library.LibraryManager {
	t.Helper()
	opts := library.DefaultOptions()
	opts.PasswordCost = bcrypt.MinCost
	opts.Clock = clock
	mgr, err := library.NewLibraryManager(opts)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	require.NoError(t, mgr.Seed())
	return mgr
}

func runScript(t *testing.T, mgr *library.LibraryManager, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	s := newSession(strings.NewReader(strings.Join(lines, "\n")+"\n"), &out, mgr)
	require.NoError(t, s.run())
	return out.String()
}

func TestMenuBorrowAndReturn(t *testing.T) {
	mgr := newTestManager(t, time.Now)

	out := runScript(t, mgr,
		"1", "user", "user123", // login
		"2", "1", // borrow The Hobbit
		"3", "1", "y", // return it
		"6", // fines
		"4", // history
		"7", // logout
		"0",
	)

	assert.Contains(t, out, "Welcome, user!")
	assert.Contains(t, out, `Book "The Hobbit" borrowed successfully.`)
	assert.Contains(t, out, `Return "The Hobbit"? (y/n): `)
	assert.Contains(t, out, "Book returned successfully.")
	assert.NotContains(t, out, "overdue")
	assert.Contains(t, out, "You have no fines.")
	assert.Contains(t, out, "Action: Borrowed, User: user")
	assert.Contains(t, out, "Action: Returned, User: user")
	assert.Contains(t, out, "Goodbye, user!")
	assert.True(t, strings.HasSuffix(out, "Exiting...\n"))

	book, err := mgr.Lending().Book(1)
	require.NoError(t, err)
	assert.True(t, book.IsAvailable())
}

func TestMenuOverdueReturnReportsFine(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return start
		}
		return start.Add(10 * 24 * time.Hour)
	}
	mgr := newTestManager(t, clock)

	out := runScript(t, mgr,
		"1", "user", "user123",
		"2", "1",
		"3", "1", "yes",
		"6",
		"0",
	)

	assert.Contains(t, out, "Book is overdue by 3 days. Fine: $3")
	assert.Contains(t, out, "Total fine: $3")
}

func TestMenuCancelledReturn(t *testing.T) {
	mgr := newTestManager(t, time.Now)

	out := runScript(t, mgr,
		"1", "user", "user123",
		"2", "2",
		"3", "2", "n",
		"0",
	)

	assert.Contains(t, out, "Return cancelled.")
	book, err := mgr.Lending().Book(2)
	require.NoError(t, err)
	assert.False(t, book.IsAvailable())
	history, _ := mgr.Lending().History()
	assert.Len(t, history, 1)
}

func TestMenuBorrowRejections(t *testing.T) {
	mgr := newTestManager(t, time.Now)

	out := runScript(t, mgr,
		"1", "user", "user123",
		"2", "abc", // not a number
		"2", "99",
		"2", "1",
		"2", "1",
		"3", "5", // not held
		"2", "2",
		"2", "3",
		"2", // limit reached before asking for an id
		"0",
	)

	assert.Contains(t, out, "Invalid ID.")
	assert.Contains(t, out, "Book not found.")
	assert.Contains(t, out, "Book not available.")
	assert.Contains(t, out, "Book not found or not borrowed by you.")
	assert.Contains(t, out, "You cannot borrow more than 3 books.")

	held, _ := mgr.Lending().BooksBorrowedBy("user")
	assert.Len(t, held, 3)
}

func TestMenuDonate(t *testing.T) {
	mgr := newTestManager(t, time.Now)

	out := runScript(t, mgr,
		"1", "user", "user123",
		"5", "Dune", "Frank Herbert",
		"5", "", "Nobody",
		"1",
		"0",
	)

	assert.Contains(t, out, "It was added as ID 6.")
	assert.Contains(t, out, "Title and author cannot be empty.")
	assert.Contains(t, out, "ID: 6, Title: Dune, Author: Frank Herbert, Status: Available")
}

func TestMenuAdmin(t *testing.T) {
	mgr := newTestManager(t, time.Now)
	_, err := mgr.Lending().Borrow("user", 3)
	require.NoError(t, err)

	out := runScript(t, mgr,
		"1", "admin", "admin123",
		"2", "42", "Dune", "Frank Herbert",
		"2", "42",
		"2", "x",
		"3",
		"9",
		"4",
		"0",
	)

	assert.Contains(t, out, "3. Admin Dashboard")
	assert.Contains(t, out, "Book added.")
	assert.Contains(t, out, "ID already exists.")
	assert.Contains(t, out, "Invalid ID.")
	assert.Contains(t, out, "ID 3: Pride and Prejudice borrowed by user on ")
	assert.Contains(t, out, "No fines recorded.")
	assert.Contains(t, out, "Registered Users:\nadmin\nuser\n")
	assert.Contains(t, out, "Invalid choice.")
	assert.Contains(t, out, "Goodbye, admin!")

	book, err := mgr.Lending().Book(42)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
}

func TestMenuGuest(t *testing.T) {
	mgr := newTestManager(t, time.Now)

	out := runScript(t, mgr,
		"x",
		"1", "user", "wrong",
		"2", "user", "pw",
		"2", "bob", "pw",
		"1", "bob", "pw",
	)

	assert.Contains(t, out, "Invalid choice.")
	assert.Contains(t, out, "Invalid credentials.")
	assert.Contains(t, out, "Username already exists.")
	assert.Contains(t, out, "Registration successful. You can now log in.")
	assert.Contains(t, out, "Welcome, bob!")
	assert.True(t, strings.HasSuffix(out, "Exiting...\n"), "end of input exits")
}

func TestRootCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "--log-format", "json"})
	cmd.SetIn(strings.NewReader("0\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "=-= WELCOME TO BOO KING =-=")
	assert.Contains(t, out.String(), "Exiting...")
}

func TestRootCommandRejectsBadFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "--log-level", "loud"})
	cmd.SetIn(strings.NewReader("0\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}
