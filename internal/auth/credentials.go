// Package auth checks logins against a credential source and issues the
// session cookie token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnknownUser        = errors.New("unknown user")
	ErrMalformedUsers     = errors.New("malformed user list")
)

// User is a known account.
type User struct {
	Name         string
	PasswordHash string
}

// Credentials looks up accounts. StaticCredentials is the only implementation
// today; a database-backed one can replace it without touching callers.
type Credentials interface {
	Lookup(ctx context.Context, username string) (User, error)
	// Usernames lists every known account in a stable order.
	Usernames(ctx context.Context) ([]string, error)
}

// StaticCredentials is a fixed set of accounts loaded from configuration.
type StaticCredentials struct {
	users map[string]User
	names []string
}

// ParseUsers reads "name:hash,name:hash". Names are trimmed and lowercased;
// hashes must be bcrypt.
func ParseUsers(spec string) (*StaticCredentials, error) {
	sc := &StaticCredentials{users: make(map[string]User)}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		name = strings.ToLower(strings.TrimSpace(name))
		hash = strings.TrimSpace(hash)
		if !ok || name == "" || hash == "" {
			return nil, fmt.Errorf("%w: entry %q", ErrMalformedUsers, entry)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("%w: user %q: %v", ErrMalformedUsers, name, err)
		}
		if _, dup := sc.users[name]; dup {
			return nil, fmt.Errorf("%w: duplicate user %q", ErrMalformedUsers, name)
		}
		sc.users[name] = User{Name: name, PasswordHash: hash}
		sc.names = append(sc.names, name)
	}
	if len(sc.names) == 0 {
		return nil, fmt.Errorf("%w: no users", ErrMalformedUsers)
	}
	sort.Strings(sc.names)
	return sc, nil
}

// NewStaticCredentials builds credentials from already-hashed users.
func NewStaticCredentials(users ...User) *StaticCredentials {
	sc := &StaticCredentials{users: make(map[string]User, len(users))}
	for _, u := range users {
		sc.users[u.Name] = u
		sc.names = append(sc.names, u.Name)
	}
	sort.Strings(sc.names)
	return sc
}

func (s *StaticCredentials) Lookup(_ context.Context, username string) (User, error) {
	u, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return User{}, ErrUnknownUser
	}
	return u, nil
}

func (s *StaticCredentials) Usernames(context.Context) ([]string, error) {
	return append([]string(nil), s.names...), nil
}

// HashPassword returns a bcrypt hash suitable for KHOROCH_USERS.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}
