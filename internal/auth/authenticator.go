package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrWeakPassword = errors.New("password must be at least 8 characters")

// Authenticator verifies a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (User, error)
}

// PasswordAuthenticator compares bcrypt hashes from a Credentials source.
type PasswordAuthenticator struct {
	creds Credentials
}

func NewPasswordAuthenticator(creds Credentials) *PasswordAuthenticator {
	return &PasswordAuthenticator{creds: creds}
}

// Authenticate returns ErrInvalidCredentials for both unknown users and wrong
// passwords.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := a.creds.Lookup(ctx, username)
	if err != nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}
