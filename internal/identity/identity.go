// Package identity holds the authenticated subject of a request and the
// directory it is resolved against.
package identity

import (
	"context"
	"errors"
	"fmt"

	"example.com/coursenotes/internal/stringsx"
)

// Role governs default authorization breadth.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

var ErrNotFound = errors.New("identity not found")

// ParseRole accepts the canonical names and the legacy ones stored by the
// course application ("ALUNO", "ADMINISTRADOR").
func ParseRole(s string) (Role, error) {
	switch stringsx.Normalize(s) {
	case "student", "aluno":
		return RoleStudent, nil
	case "admin", "administrador":
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// Identity is produced fresh per request from a verified credential.
// Role is the effective role resolved from the directory; TokenRole is what
// the credential was issued with and is informational only.
type Identity struct {
	ID        int64 `json:"id"`
	Role      Role  `json:"role"`
	TokenRole Role  `json:"-"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// User is a directory row.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// Directory resolves users. Lookups return ErrNotFound when absent.
type Directory interface {
	LookupByID(ctx context.Context, id int64) (User, error)
	LookupByEmail(ctx context.Context, email string) (User, error)
}
