package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"example.com/coursenotes/internal/identity"
)

var secret = []byte("test-secret")

type stubDirectory struct {
	byIDFn    func(context.Context, int64) (identity.User, error)
	byEmailFn func(context.Context, string) (identity.User, error)
}

func (s stubDirectory) LookupByID(ctx context.Context, id int64) (identity.User, error) {
	return s.byIDFn(ctx, id)
}

func (s stubDirectory) LookupByEmail(ctx context.Context, email string) (identity.User, error) {
	return s.byEmailFn(ctx, email)
}

func usersDirectory(users ...identity.User) stubDirectory {
	return stubDirectory{
		byIDFn: func(_ context.Context, id int64) (identity.User, error) {
			for _, u := range users {
				if u.ID == id {
					return u, nil
				}
			}
			return identity.User{}, identity.ErrNotFound
		},
		byEmailFn: func(_ context.Context, email string) (identity.User, error) {
			for _, u := range users {
				if u.Email == email {
					return u, nil
				}
			}
			return identity.User{}, identity.ErrNotFound
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(nil, usersDirectory())
	require.Error(t, err)
}

func TestParseBearer_Table(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"empty header", "", "", true},
		{"missing prefix", "abc.def.ghi", "", true},
		{"basic scheme", "Basic dXNlcjpwYXNz", "", true},
		{"lowercase scheme", "bearer abc", "", true},
		{"empty token", "Bearer ", "", true},
		{"blank token", "Bearer    ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBearer(tt.header)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMissingCredential)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestIssueAndAuthenticate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	student := identity.User{ID: 7, Email: "ana@example.com", Role: identity.RoleStudent}
	a, err := New(secret, usersDirectory(student), WithClock(fixedClock(now)))
	require.NoError(t, err)

	token, err := a.Issue(student)
	require.NoError(t, err)

	who, err := a.Authenticate(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	require.Equal(t, int64(7), who.ID)
	require.Equal(t, identity.RoleStudent, who.Role)
	require.Equal(t, identity.RoleStudent, who.TokenRole)
}

func TestAuthenticate_MissingCredential(t *testing.T) {
	a, err := New(secret, usersDirectory())
	require.NoError(t, err)

	_, err = a.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingCredential)

	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, MissingCredential, ae.Kind)
}

func TestAuthenticate_Expired(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := identity.User{ID: 1, Role: identity.RoleStudent}

	issuer, err := New(secret, usersDirectory(u), WithClock(fixedClock(issued)), WithTTL(time.Hour))
	require.NoError(t, err)
	token, err := issuer.Issue(u)
	require.NoError(t, err)

	within, err := New(secret, usersDirectory(u), WithClock(fixedClock(issued.Add(59*time.Minute))))
	require.NoError(t, err)
	_, err = within.Verify(context.Background(), token)
	require.NoError(t, err)

	later, err := New(secret, usersDirectory(u), WithClock(fixedClock(issued.Add(2*time.Hour))))
	require.NoError(t, err)
	_, err = later.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidOrExpired)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthenticate_InvalidTokens(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := identity.User{ID: 1, Role: identity.RoleStudent}
	a, err := New(secret, usersDirectory(u), WithClock(fixedClock(now)))
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func(id int64, role string) Claims {
		return Claims{UserID: id, Role: role, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"three garbage segments", "abc.def.ghi"},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("other"), valid(1, "STUDENT"))},
		{"alg none", sign(jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid(1, "STUDENT"))},
		{"hs512 not accepted", sign(jwt.SigningMethodHS512, secret, valid(1, "STUDENT"))},
		{"no expiry", sign(jwt.SigningMethodHS256, secret, Claims{UserID: 1, Role: "STUDENT"})},
		{"no subject id", sign(jwt.SigningMethodHS256, secret, valid(0, "STUDENT"))},
		{"unknown role", sign(jwt.SigningMethodHS256, secret, valid(1, "guest"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, ErrInvalidOrExpired)
			require.NotErrorIs(t, err, ErrUnknownSubject)
		})
	}
}

func TestAuthenticate_UnknownSubject(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deleted := identity.User{ID: 42, Role: identity.RoleStudent}

	issuer, err := New(secret, usersDirectory(deleted), WithClock(fixedClock(now)))
	require.NoError(t, err)
	token, err := issuer.Issue(deleted)
	require.NoError(t, err)

	a, err := New(secret, usersDirectory(), WithClock(fixedClock(now)))
	require.NoError(t, err)
	_, err = a.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrUnknownSubject)
}

func TestAuthenticate_DirectoryFailureIsNotAuthError(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	boom := errors.New("connection refused")
	dir := stubDirectory{byIDFn: func(context.Context, int64) (identity.User, error) { return identity.User{}, boom }}

	a, err := New(secret, dir, WithClock(fixedClock(now)))
	require.NoError(t, err)
	token, err := a.Issue(identity.User{ID: 1, Role: identity.RoleStudent})
	require.NoError(t, err)

	_, err = a.Verify(context.Background(), token)
	require.ErrorIs(t, err, boom)
	var ae *AuthError
	require.False(t, errors.As(err, &ae))
}

func TestAuthenticate_EffectiveRoleWins(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	asIssued := identity.User{ID: 3, Role: identity.RoleAdmin}
	demoted := identity.User{ID: 3, Role: identity.RoleStudent}

	issuer, err := New(secret, usersDirectory(asIssued), WithClock(fixedClock(now)))
	require.NoError(t, err)
	token, err := issuer.Issue(asIssued)
	require.NoError(t, err)

	a, err := New(secret, usersDirectory(demoted), WithClock(fixedClock(now)))
	require.NoError(t, err)
	who, err := a.Verify(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, identity.RoleStudent, who.Role)
	require.Equal(t, identity.RoleAdmin, who.TokenRole)
	require.False(t, who.IsAdmin())
}

func TestIssue_Claims(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := New(secret, usersDirectory(), WithClock(fixedClock(now)))
	require.NoError(t, err)

	token, err := a.Issue(identity.User{ID: 9, Role: identity.RoleAdmin})
	require.NoError(t, err)

	var c Claims
	_, _, err = jwt.NewParser().ParseUnverified(token, &c)
	require.NoError(t, err)
	require.Equal(t, int64(9), c.UserID)
	require.Equal(t, "ADMIN", c.Role)
	require.Equal(t, "9", c.Subject)
	require.Equal(t, now.Add(DefaultTTL).Unix(), c.ExpiresAt.Unix())
}

func TestLogin(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	u := identity.User{ID: 5, Name: "Ana", Email: "ana@example.com", PasswordHash: hash, Role: identity.RoleStudent}

	a, err := New(secret, usersDirectory(u))
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		token, got, err := a.Login(ctx, "ana@example.com", "s3cret")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)

		who, err := a.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, u.ID, who.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := a.Login(ctx, "ana@example.com", "nope")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, err := a.Login(ctx, "bob@example.com", "s3cret")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthErrorMessages(t *testing.T) {
	require.Equal(t, "missing credential", ErrMissingCredential.Error())
	err := &AuthError{Kind: UnknownSubject, Err: errors.New("user 4")}
	require.Equal(t, "unknown subject: user 4", err.Error())
	require.ErrorIs(t, err, ErrUnknownSubject)
	require.NotErrorIs(t, err, ErrInvalidOrExpired)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	who := identity.Identity{ID: 3, Role: identity.RoleAdmin}
	got, ok := FromContext(WithIdentity(context.Background(), who))
	require.True(t, ok)
	require.Equal(t, who, got)
}
