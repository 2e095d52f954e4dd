// Package auth verifies bearer credentials and resolves them to an
// identity.Identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"example.com/coursenotes/internal/identity"
)

const (
	DefaultTTL   = 24 * time.Hour
	bearerPrefix = "Bearer "
)

// Claims is the token payload. Role is the role at issuance and may be
// stale by the time the token is presented.
type Claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Option func(*Authenticator)

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Authenticator issues and verifies HS256 tokens signed with a shared
// secret and confirms the subject against the directory on every request.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	dir    identity.Directory
	now    func() time.Time
	logger *slog.Logger
}

func New(secret []byte, dir identity.Directory, opts ...Option) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	a := &Authenticator{
		secret: secret,
		ttl:    DefaultTTL,
		dir:    dir,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingCredential
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

// Authenticate verifies the credential in an Authorization header.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (identity.Identity, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return identity.Identity{}, err
	}
	return a.Verify(ctx, token)
}

// Verify checks signature and expiry, then resolves the subject. The
// returned Role is the directory's current role, not the token's.
func (a *Authenticator) Verify(ctx context.Context, token string) (identity.Identity, error) {
	claims, tokenRole, err := a.parse(token)
	if err != nil {
		return identity.Identity{}, err
	}

	user, err := a.dir.LookupByID(ctx, claims.UserID)
	if errors.Is(err, identity.ErrNotFound) {
		return identity.Identity{}, &AuthError{Kind: UnknownSubject, Err: fmt.Errorf("user %d", claims.UserID)}
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("resolve token subject: %w", err)
	}

	if user.Role != tokenRole {
		a.logger.Debug("token role differs from directory role",
			"user_id", user.ID, "token_role", tokenRole, "role", user.Role)
	}
	return identity.Identity{ID: user.ID, Role: user.Role, TokenRole: tokenRole}, nil
}

func (a *Authenticator) parse(token string) (*Claims, identity.Role, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, "", invalid(err)
	}
	if claims.UserID <= 0 {
		return nil, "", invalid(errors.New("token has no subject id"))
	}
	role, err := identity.ParseRole(claims.Role)
	if err != nil {
		return nil, "", invalid(err)
	}
	return &claims, role, nil
}

// Issue mints a token for u that expires after the configured TTL.
func (a *Authenticator) Issue(u identity.User) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Login checks email and password against the directory and issues a
// token. Unknown emails and wrong passwords are indistinguishable.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, identity.User, error) {
	u, err := a.dir.LookupByEmail(ctx, email)
	if errors.Is(err, identity.ErrNotFound) {
		return "", identity.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", identity.User{}, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", identity.User{}, ErrInvalidCredentials
	}

	token, err := a.Issue(u)
	if err != nil {
		return "", identity.User{}, err
	}
	return token, u, nil
}

// HashPassword returns a bcrypt hash suitable for identity.User.PasswordHash.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
