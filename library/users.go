package library

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

// AdminUsername is the account that holds the admin role.
const AdminUsername = "admin"

type userRow struct {
	Pos          int64  `db:"pos"`
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
}

// Directory keeps the registered accounts.
type Directory struct {
	q      sqlx.Ext
	cost   int
	logger *slog.Logger
}

// NewDirectory binds a Directory to q. cost is the bcrypt cost; values
// outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewDirectory(q sqlx.Ext, cost int, logger *slog.Logger) *Directory {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Directory{q: q, cost: cost, logger: logger}
}

// IsAdmin reports whether username holds the admin role.
func IsAdmin(username string) bool { return username == AdminUsername }

// Register creates a new account.
func (d *Directory) Register(username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, fmt.Errorf("username and password are required: %w", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	if _, err := d.q.Exec(`INSERT INTO users(username,password_hash) VALUES(?,?)`, username, string(hash)); err != nil {
		if isUniqueViolation(err) {
			return User{}, fmt.Errorf("%s: %w", username, ErrUsernameTaken)
		}
		return User{}, fmt.Errorf("register %s: %w", username, err)
	}

	d.logger.Info("user registered", "user", username)
	return User{Username: username, PasswordHash: string(hash)}, nil
}

// Authenticate checks the credentials and returns the matching account.
func (d *Directory) Authenticate(username, password string) (User, error) {
	query, err := buildSQL(dialect.From("users").
		Select("pos", "username", "password_hash").
		Where(goqu.Ex{"username": username}))
	if err != nil {
		return User{}, err
	}

	var r userRow
	if err := sqlx.Get(d.q, &r, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			d.logger.Info("login rejected", "user", username, "reason", "unknown user")
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup %s: %w", username, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) != nil {
		d.logger.Info("login rejected", "user", username, "reason", "wrong password")
		return User{}, ErrInvalidCredentials
	}
	return User{Username: r.Username, PasswordHash: r.PasswordHash}, nil
}

// List returns all accounts in registration order.
func (d *Directory) List() ([]User, error) {
	query, err := buildSQL(dialect.From("users").
		Select("pos", "username", "password_hash").
		Order(goqu.I("pos").Asc()))
	if err != nil {
		return nil, err
	}

	var rows []userRow
	if err := sqlx.Select(d.q, &rows, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, User{Username: r.Username, PasswordHash: r.PasswordHash})
	}
	return users, nil
}
