package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"library-lending/library"
)

const dateLayout = "2006-01-02"

// session is the text menu. It owns all terminal I/O; the library package
// only sees parsed arguments.
type session struct {
	sc  *bufio.Scanner
	out io.Writer
	mgr *library.LibraryManager

	// readPassword reads a secret; defaults to a plain line read.
	readPassword func(prompt string) (string, error)
	clearScreen  bool

	current string
}

func newSession(in io.Reader, out io.Writer, mgr *library.LibraryManager) *session {
	s := &session{sc: bufio.NewScanner(in), out: out, mgr: mgr}
	s.readPassword = func(prompt string) (string, error) {
		line, ok := s.prompt(prompt)
		if !ok {
			return "", io.EOF
		}
		return line, nil
	}
	return s
}

func (s *session) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }
func (s *session) println(args ...any)               { fmt.Fprintln(s.out, args...) }

func (s *session) clear() {
	if s.clearScreen {
		s.printf("\033[2J\033[H")
	}
}

// prompt prints p and reads one trimmed line. ok is false on end of input.
func (s *session) prompt(p string) (string, bool) {
	s.printf("%s", p)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *session) promptID(p string) (int64, bool) {
	line, ok := s.prompt(p)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		s.println("Invalid ID.")
		s.println()
		return 0, false
	}
	return id, true
}

func (s *session) loggedIn() bool { return s.current != "" }
func (s *session) isAdmin() bool  { return s.loggedIn() && library.IsAdmin(s.current) }

func (s *session) lending() *library.LendingService { return s.mgr.Lending() }

// run drives the menu until the user picks 0 or input ends.
func (s *session) run() error {
	for {
		s.println("=-= WELCOME TO BOO KING =-=")
		s.printMenu()

		line, ok := s.prompt("\nEnter your choice: ")
		if !ok {
			s.println()
			s.println("Exiting...")
			return nil
		}
		choice, err := strconv.Atoi(line)
		if err != nil {
			choice = -1
		}
		s.clear()

		if choice == 0 {
			s.println("Exiting...")
			return nil
		}

		switch {
		case !s.loggedIn():
			s.dispatchGuest(choice)
		case s.isAdmin():
			s.dispatchAdmin(choice)
		default:
			s.dispatchUser(choice)
		}
	}
}

func (s *session) printMenu() {
	s.println("0. Exit")
	switch {
	case !s.loggedIn():
		s.println("1. Login")
		s.println("2. Register")
	case s.isAdmin():
		s.println("1. View Books")
		s.println("2. Add Book")
		s.println("3. Admin Dashboard")
		s.println("4. Logout")
	default:
		s.println("1. View Books")
		s.println("2. Borrow Book")
		s.println("3. Return Book")
		s.println("4. View Transaction History")
		s.println("5. Donate Book")
		s.println("6. View My Fines")
		s.println("7. Logout")
	}
}

func (s *session) dispatchGuest(choice int) {
	switch choice {
	case 1:
		s.handleLogin()
	case 2:
		s.handleRegister()
	default:
		s.invalidChoice()
	}
}

func (s *session) dispatchAdmin(choice int) {
	switch choice {
	case 1:
		s.handleViewBooks()
	case 2:
		s.handleAddBook()
	case 3:
		s.handleDashboard()
	case 4:
		s.handleLogout()
	default:
		s.invalidChoice()
	}
}

func (s *session) dispatchUser(choice int) {
	switch choice {
	case 1:
		s.handleViewBooks()
	case 2:
		s.handleBorrow()
	case 3:
		s.handleReturn()
	case 4:
		s.handleTransactions()
	case 5:
		s.handleDonate()
	case 6:
		s.handleFines()
	case 7:
		s.handleLogout()
	default:
		s.invalidChoice()
	}
}

func (s *session) invalidChoice() {
	s.println("Invalid choice.")
	s.println()
}

func (s *session) fail(err error) {
	s.printf("Error: %v\n\n", err)
}

// ------------------ Accounts ------------------

func (s *session) handleLogin() {
	s.clear()
	username, ok := s.prompt("Enter username: ")
	if !ok {
		return
	}
	password, err := s.readPassword("Enter password: ")
	if err != nil {
		return
	}
	s.clear()

	user, err := s.mgr.Users().Authenticate(username, password)
	switch {
	case errors.Is(err, library.ErrInvalidCredentials):
		s.println("Invalid credentials.")
		s.println()
	case err != nil:
		s.fail(err)
	default:
		s.current = user.Username
		s.printf("Welcome, %s!\n\n", user.Username)
	}
}

func (s *session) handleRegister() {
	s.clear()
	username, ok := s.prompt("Enter a new username: ")
	if !ok {
		return
	}
	password, err := s.readPassword("Enter a password: ")
	if err != nil {
		return
	}

	_, err = s.mgr.Users().Register(username, password)
	switch {
	case errors.Is(err, library.ErrUsernameTaken):
		s.println("Username already exists.")
		s.println()
	case errors.Is(err, library.ErrInvalidInput):
		s.println("Username and password cannot be empty.")
		s.println()
	case err != nil:
		s.fail(err)
	default:
		s.clear()
		s.println("Registration successful. You can now log in.")
		s.println()
	}
}

func (s *session) handleLogout() {
	s.clear()
	s.printf("Goodbye, %s!\n\n", s.current)
	s.current = ""
}

// ------------------ Catalog ------------------

func (s *session) handleViewBooks() {
	s.clear()
	books, err := s.lending().Books()
	if err != nil {
		s.fail(err)
		return
	}
	s.println("--- List of Books ---")
	for _, b := range books {
		status := "Available"
		if loan, ok := b.Loan(); ok {
			status = "Borrowed by " + loan.Borrower
		}
		s.printf("ID: %d, Title: %s, Author: %s, Status: %s\n", b.ID, b.Title, b.Author, status)
	}
	s.println()
}

func (s *session) handleBorrow() {
	s.handleViewBooks()

	held, err := s.lending().BooksBorrowedBy(s.current)
	if err != nil {
		s.fail(err)
		return
	}
	if limit := s.lending().Policy().MaxActiveBorrows; len(held) >= limit {
		s.printf("You cannot borrow more than %d books.\n\n", limit)
		return
	}

	id, ok := s.promptID("Enter Book ID to borrow: ")
	if !ok {
		return
	}

	receipt, err := s.lending().Borrow(s.current, id)
	switch {
	case errors.Is(err, library.ErrBorrowLimitExceeded):
		s.printf("You cannot borrow more than %d books.\n\n", s.lending().Policy().MaxActiveBorrows)
	case errors.Is(err, library.ErrBookNotFound):
		s.println("Book not found.")
		s.println()
	case errors.Is(err, library.ErrBookUnavailable):
		s.println("Book not available.")
		s.println()
	case err != nil:
		s.fail(err)
	default:
		s.clear()
		s.printf("Book \"%s\" borrowed successfully.\n\n", receipt.Book.Title)
	}
}

func (s *session) handleReturn() {
	s.clear()
	held, err := s.lending().BooksBorrowedBy(s.current)
	if err != nil {
		s.fail(err)
		return
	}

	s.println("--- Your Borrowed Books ---")
	if len(held) == 0 {
		s.println("You haven't borrowed any books.")
		s.println()
		return
	}
	for _, b := range held {
		loan, _ := b.Loan()
		s.printf("ID: %d, Title: %s, Borrowed Date: %s\n", b.ID, b.Title, loan.Since.Format(dateLayout))
	}

	id, ok := s.promptID("\nEnter Book ID to return: ")
	if !ok {
		return
	}

	// An unconfirmed return validates the request without changing anything.
	probe, err := s.lending().Return(s.current, id, false)
	if errors.Is(err, library.ErrBookNotFound) || errors.Is(err, library.ErrNotBorrowedByUser) {
		s.println("Book not found or not borrowed by you.")
		s.println()
		return
	}
	if err != nil {
		s.fail(err)
		return
	}

	answer, ok := s.prompt(fmt.Sprintf("Return \"%s\"? (y/n): ", probe.Book.Title))
	if !ok {
		return
	}
	answer = strings.ToLower(answer)
	confirmed := answer == "y" || answer == "yes"

	receipt, err := s.lending().Return(s.current, id, confirmed)
	if err != nil {
		s.fail(err)
		return
	}
	if receipt.Cancelled {
		s.println("Return cancelled.")
		s.println()
		return
	}
	if receipt.Fine > 0 {
		s.printf("Book is overdue by %d days. Fine: $%d\n", receipt.OverdueDays, receipt.Fine)
	}
	s.println("Book returned successfully.")
	s.println()
}

func (s *session) handleTransactions() {
	s.clear()
	history, err := s.lending().History()
	if err != nil {
		s.fail(err)
		return
	}
	s.println("--- Transaction History ---")
	for _, t := range history {
		s.printf("[%s] Book ID: %d, Title: %s, Action: %s, User: %s\n",
			t.Timestamp.Format("2006-01-02 15:04:05"), t.BookID, t.Title, t.Action, t.Username)
	}
	s.println()
}

func (s *session) handleDonate() {
	title, ok := s.prompt("Enter Book Title: ")
	if !ok {
		return
	}
	author, ok := s.prompt("Enter Book Author: ")
	if !ok {
		return
	}

	book, err := s.lending().Donate(s.current, title, author)
	switch {
	case errors.Is(err, library.ErrInvalidInput):
		s.println("Title and author cannot be empty.")
		s.println()
	case err != nil:
		s.fail(err)
	default:
		s.clear()
		s.printf("Thank you for donating the book! It was added as ID %d.\n\n", book.ID)
	}
}

func (s *session) handleFines() {
	s.clear()
	fine, err := s.lending().FineOf(s.current)
	if err != nil {
		s.fail(err)
		return
	}
	s.println("--- Your Fine Details ---")
	if fine > 0 {
		s.printf("Total fine: $%d\n\n", fine)
	} else {
		s.println("You have no fines.")
		s.println()
	}
}

// ------------------ Admin ------------------

func (s *session) handleAddBook() {
	id, ok := s.promptID("Enter new Book ID: ")
	if !ok {
		return
	}
	if _, err := s.lending().Book(id); err == nil {
		s.println("ID already exists.")
		s.println()
		return
	}

	title, ok := s.prompt("Enter Title: ")
	if !ok {
		return
	}
	author, ok := s.prompt("Enter Author: ")
	if !ok {
		return
	}

	actor := library.Actor{Username: s.current, IsAdmin: s.isAdmin()}
	_, err := s.lending().AdminAddBook(actor, id, title, author)
	switch {
	case errors.Is(err, library.ErrDuplicateID):
		s.println("ID already exists.")
		s.println()
	case errors.Is(err, library.ErrNotAdmin):
		s.println("Admin only.")
		s.println()
	case err != nil:
		s.fail(err)
	default:
		s.println("Book added.")
		s.println()
	}
}

func (s *session) handleDashboard() {
	s.clear()
	borrowed, err := s.lending().BorrowedBooks()
	if err != nil {
		s.fail(err)
		return
	}
	fines, err := s.lending().Fines()
	if err != nil {
		s.fail(err)
		return
	}
	users, err := s.mgr.Users().List()
	if err != nil {
		s.fail(err)
		return
	}

	s.println("--- Admin Dashboard ---")
	s.println("Borrowed Books:")
	if len(borrowed) == 0 {
		s.println("None.")
	}
	for _, b := range borrowed {
		loan, _ := b.Loan()
		s.printf("ID %d: %s borrowed by %s on %s\n", b.ID, b.Title, loan.Borrower, loan.Since.Format(dateLayout))
	}

	s.println("\nUser Fines:")
	if len(fines) == 0 {
		s.println("No fines recorded.")
	}
	for _, f := range fines {
		s.printf("%s: $%d\n", f.Username, f.Amount)
	}

	s.println("\nRegistered Users:")
	for _, u := range users {
		s.println(u.Username)
	}
	s.println()
}
