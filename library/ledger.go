package library

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type transactionRow struct {
	Seq        int64  `db:"seq"`
	Ref        string `db:"ref"`
	BookID     int64  `db:"book_id"`
	Title      string `db:"title"`
	Action     string `db:"action"`
	Username   string `db:"username"`
	OccurredAt int64  `db:"occurred_at"`
}

// Ledger is the append-only transaction history.
type Ledger struct {
	q sqlx.Ext
}

func NewLedger(q sqlx.Ext) *Ledger {
	return &Ledger{q: q}
}

// Append records one action. Records are never edited or removed afterwards.
func (l *Ledger) Append(bookID int64, title string, action Action, username string, at time.Time) (TransactionRecord, error) {
	rec := TransactionRecord{
		Ref:       uuid.New(),
		BookID:    bookID,
		Title:     title,
		Action:    action,
		Username:  username,
		Timestamp: at,
	}
	_, err := l.q.Exec(`INSERT INTO transactions(ref,book_id,title,action,username,occurred_at) VALUES(?,?,?,?,?,?)`,
		rec.Ref.String(), rec.BookID, rec.Title, string(rec.Action), rec.Username, at.UnixNano())
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("append transaction: %w", err)
	}
	return rec, nil
}

// History returns all records, oldest first.
func (l *Ledger) History() ([]TransactionRecord, error) {
	query, err := buildSQL(dialect.From("transactions").
		Select("seq", "ref", "book_id", "title", "action", "username", "occurred_at").
		Order(goqu.I("seq").Asc()))
	if err != nil {
		return nil, err
	}

	var rows []transactionRow
	if err := sqlx.Select(l.q, &rows, query); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	history := make([]TransactionRecord, 0, len(rows))
	for _, r := range rows {
		ref, err := uuid.Parse(r.Ref)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: bad ref: %w", r.Seq, err)
		}
		history = append(history, TransactionRecord{
			Ref:       ref,
			BookID:    r.BookID,
			Title:     r.Title,
			Action:    Action(r.Action),
			Username:  r.Username,
			Timestamp: time.Unix(0, r.OccurredAt),
		})
	}
	return history, nil
}
