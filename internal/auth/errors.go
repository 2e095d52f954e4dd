package auth

import (
	"errors"
	"fmt"
)

type AuthErrorKind int

const (
	MissingCredential AuthErrorKind = iota + 1
	InvalidOrExpired
	UnknownSubject
)

func (k AuthErrorKind) String() string {
	switch k {
	case MissingCredential:
		return "missing credential"
	case InvalidOrExpired:
		return "invalid or expired token"
	case UnknownSubject:
		return "unknown subject"
	default:
		return "unknown auth error"
	}
}

// AuthError is an authentication failure. Match it with errors.Is against
// the Err* values below, which compare by Kind only.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingCredential = &AuthError{Kind: MissingCredential}
	ErrInvalidOrExpired  = &AuthError{Kind: InvalidOrExpired}
	ErrUnknownSubject    = &AuthError{Kind: UnknownSubject}

	// ErrInvalidCredentials is returned by Login for a bad email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func invalid(err error) error {
	return &AuthError{Kind: InvalidOrExpired, Err: err}
}
