// Command lending_demo replays a fixed lending scenario against a fresh
// in-memory library with a simulated clock and prints every outcome.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"library-lending/config"
	"library-lending/library"
)

// step is one action of the scenario. days moves the simulated clock forward
// before the action runs.
type step struct {
	days int
	desc string
	run  func(svc *library.LendingService) (string, error)
}

func borrow(user string, id int64) func(*library.LendingService) (string, error) {
	return func(svc *library.LendingService) (string, error) {
		r, err := svc.Borrow(user, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%q now borrowed by %s", r.Book.Title, user), nil
	}
}

func giveBack(user string, id int64, confirmed bool) func(*library.LendingService) (string, error) {
	return func(svc *library.LendingService) (string, error) {
		r, err := svc.Return(user, id, confirmed)
		if err != nil {
			return "", err
		}
		if r.Cancelled {
			return "cancelled, nothing changed", nil
		}
		return fmt.Sprintf("returned after %d days, fine %d", r.ElapsedDays, r.Fine), nil
	}
}

func donate(user, title, author string) func(*library.LendingService) (string, error) {
	return func(svc *library.LendingService) (string, error) {
		b, err := svc.Donate(user, title, author)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("added as ID %d", b.ID), nil
	}
}

var scenario = []step{
	{0, "user borrows book 1", borrow("user", 1)},
	{0, "user borrows book 1 again", borrow("user", 1)},
	{0, "user borrows book 2", borrow("user", 2)},
	{0, "user borrows book 3", borrow("user", 3)},
	{0, "user borrows book 4", borrow("user", 4)},
	{5, "user returns book 2 without confirming", giveBack("user", 2, false)},
	{0, "user returns book 2", giveBack("user", 2, true)},
	{9, "user returns book 1", giveBack("user", 1, true)},
	{0, "user returns book 5", giveBack("user", 5, true)},
	{0, "user donates a book", donate("user", "Dune", "Frank Herbert")},
}

func main() {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := run(os.Stdout, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer, cfg config.Config) error {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	opts := library.DefaultOptions()
	opts.Policy = cfg.Policy
	opts.PasswordCost = cfg.PasswordCost
	opts.Logger = cfg.Logger(os.Stderr)
	opts.Clock = func() time.Time { return now }

	manager, err := library.NewLibraryManager(opts)
	if err != nil {
		return fmt.Errorf("create library: %w", err)
	}
	defer manager.Close()
	if err := manager.Seed(); err != nil {
		return err
	}
	svc := manager.Lending()

	fmt.Fprintf(out, "Policy: %d books at a time, %d grace days, %d per overdue day\n\n",
		cfg.Policy.MaxActiveBorrows, cfg.Policy.GracePeriodDays, cfg.Policy.FinePerDay)

	successCount := 0
	rejectCount := 0
	for _, st := range scenario {
		now = now.AddDate(0, 0, st.days)
		fmt.Fprintf(out, "[%s] %s... ", now.Format("2006-01-02"), st.desc)

		msg, err := st.run(svc)
		switch {
		case err == nil:
			fmt.Fprintf(out, "OK - %s\n", msg)
			successCount++
		case library.IsRejection(err):
			fmt.Fprintf(out, "REJECTED - %v\n", err)
			rejectCount++
		default:
			return err
		}
	}

	fmt.Fprintf(out, "\nScenario complete!\n")
	fmt.Fprintf(out, "Succeeded: %d\n", successCount)
	fmt.Fprintf(out, "Rejected: %d\n", rejectCount)

	return printSummary(out, svc)
}

func printSummary(out io.Writer, svc *library.LendingService) error {
	books, err := svc.Books()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "\nCatalog:")
	fmt.Fprintf(out, "%-3s %-30s %-25s %-10s\n", "ID", "Title", "Author", "Status")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, b := range books {
		status := "available"
		if loan, ok := b.Loan(); ok {
			status = loan.Borrower
		}
		fmt.Fprintf(out, "%-3d %-30s %-25s %-10s\n", b.ID, truncateString(b.Title, 30), truncateString(b.Author, 25), status)
	}

	history, err := svc.History()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nLedger entries: %d\n", len(history))

	fines, err := svc.Fines()
	if err != nil {
		return err
	}
	if len(fines) == 0 {
		fmt.Fprintln(out, "No fines recorded.")
	}
	for _, f := range fines {
		fmt.Fprintf(out, "Fine owed by %s: %d\n", f.Username, f.Amount)
	}
	return nil
}

// truncateString cuts s to at most maxLen runes.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
