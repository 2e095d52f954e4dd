package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLDirectory reads users from the relational store owned by the admin
// application. Placeholders are written as $N and rewritten for SQLite.
type SQLDirectory struct {
	db         *sql.DB
	positional bool
}

// NewSQLDirectory wraps db. driver is the database/sql driver name the
// connection was opened with ("pgx" or "sqlite").
func NewSQLDirectory(db *sql.DB, driver string) *SQLDirectory {
	return &SQLDirectory{db: db, positional: driver == "sqlite"}
}

const userCols = `id, name, email, password_hash, role`

func (d *SQLDirectory) q(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' {
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if j > i+1 {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role); err != nil {
		return User{}, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Role = r
	return u, nil
}

func (d *SQLDirectory) LookupByID(ctx context.Context, id int64) (User, error) {
	row := d.db.QueryRowContext(ctx, d.q(`SELECT `+userCols+` FROM users WHERE id = $1`), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by id: %w", err)
	}
	return u, nil
}

func (d *SQLDirectory) LookupByEmail(ctx context.Context, email string) (User, error) {
	row := d.db.QueryRowContext(ctx, d.q(`SELECT `+userCols+` FROM users WHERE email = $1`), strings.TrimSpace(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return u, nil
}

// Create inserts a user. The password must already be hashed.
func (d *SQLDirectory) Create(ctx context.Context, u User) (User, error) {
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("create user: invalid role %q", u.Role)
	}
	row := d.db.QueryRowContext(ctx, d.q(`
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userCols),
		u.Name, strings.TrimSpace(u.Email), u.PasswordHash, string(u.Role),
	)
	created, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// SetRole changes a user's role; tokens already issued keep their old claim.
func (d *SQLDirectory) SetRole(ctx context.Context, id int64, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("set role: invalid role %q", role)
	}
	res, err := d.db.ExecContext(ctx, d.q(`UPDATE users SET role = $1 WHERE id = $2`), string(role), id)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return affectedOne(res)
}

// affectedOne maps a zero row count to ErrNotFound.
func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
