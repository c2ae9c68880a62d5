package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
)

// FineBook tracks the accumulated overdue fines per user. Balances only grow.
type FineBook struct {
	q sqlx.Ext
}

func NewFineBook(q sqlx.Ext) *FineBook {
	return &FineBook{q: q}
}

// AddFine adds amount to the user's balance, opening it at zero if needed.
func (f *FineBook) AddFine(username string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("fine amount %d: %w", amount, ErrInvalidInput)
	}
	_, err := f.q.Exec(`INSERT INTO fines(username,balance) VALUES(?,?)
        ON CONFLICT(username) DO UPDATE SET balance=balance+excluded.balance;`, username, amount)
	if err != nil {
		return fmt.Errorf("add fine for %s: %w", username, err)
	}
	return nil
}

// BalanceOf returns the user's balance, 0 when no fine was ever recorded.
func (f *FineBook) BalanceOf(username string) (int, error) {
	query, err := buildSQL(dialect.From("fines").Select("balance").Where(goqu.Ex{"username": username}))
	if err != nil {
		return 0, err
	}
	var balance int
	if err := sqlx.Get(f.q, &balance, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("fine balance of %s: %w", username, err)
	}
	return balance, nil
}

// Balances lists every recorded balance ordered by username.
func (f *FineBook) Balances() ([]FineBalance, error) {
	query, err := buildSQL(dialect.From("fines").
		Select(goqu.C("username"), goqu.C("balance").As("amount")).
		Order(goqu.I("username").Asc()))
	if err != nil {
		return nil, err
	}
	var balances []FineBalance
	if err := sqlx.Select(f.q, &balances, query); err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return balances, nil
}
