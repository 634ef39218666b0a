package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestParseUsers(t *testing.T) {
	spec := "Niloy:" + mustHash(t, "password1") + ", sejuti:" + mustHash(t, "password2") + ","
	creds, err := ParseUsers(spec)
	require.NoError(t, err)

	names, err := creds.Usernames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"niloy", "sejuti"}, names)

	u, err := creds.Lookup(context.Background(), " NILOY ")
	require.NoError(t, err)
	assert.Equal(t, "niloy", u.Name)

	_, err = creds.Lookup(context.Background(), "mallory")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestParseUsersRejectsMalformed(t *testing.T) {
	h := mustHash(t, "password1")
	cases := []string{
		"",
		"niloy",
		"niloy:",
		":" + h,
		"niloy:plaintext",
		"niloy:" + h + ",niloy:" + h,
	}
	for _, spec := range cases {
		_, err := ParseUsers(spec)
		assert.ErrorIs(t, err, ErrMalformedUsers, "spec %q", spec)
	}
}

func TestPasswordAuthenticator(t *testing.T) {
	creds := NewStaticCredentials(User{Name: "niloy", PasswordHash: mustHash(t, "correct horse")})
	a := NewPasswordAuthenticator(creds)
	ctx := context.Background()

	u, err := a.Authenticate(ctx, "niloy", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "niloy", u.Name)

	_, err = a.Authenticate(ctx, "niloy", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	h, err := HashPassword("long enough")
	require.NoError(t, err)
	_, err = ParseUsers("niloy:" + h)
	assert.NoError(t, err)
}

func TestTokenManagerRoundTrip(t *testing.T) {
	m := NewTokenManager(strings.Repeat("k", 32), time.Hour)
	tok, err := m.Generate("niloy", "sess-1")
	require.NoError(t, err)

	claims, err := m.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "niloy", claims.Username)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestTokenManagerRejects(t *testing.T) {
	m := NewTokenManager(strings.Repeat("k", 32), time.Hour)
	tok, err := m.Generate("niloy", "sess-1")
	require.NoError(t, err)

	_, err = m.Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)

	other := NewTokenManager(strings.Repeat("x", 32), time.Hour)
	_, err = other.Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.Validate(tok)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Username: "niloy", SessionID: "s"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewTokenManager("k", time.Hour).Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
