package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword produces a salted one-way hash of plaintext.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored hash.
// Any error (including a malformed hash) fails closed.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// RepositoryAuthService verifies credentials against the account repository.
type RepositoryAuthService struct {
	accounts AccountRepository
}

func NewRepositoryAuthService(accounts AccountRepository) *RepositoryAuthService {
	return &RepositoryAuthService{accounts: accounts}
}

// Authenticate returns the stored account when username/password match.
// Unknown accounts and wrong passwords are indistinguishable to the caller;
// an unavailable account store is not a credential failure and propagates
// as its own error.
func (s *RepositoryAuthService) Authenticate(username, password string) (AccountRecord, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return AccountRecord{}, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	a, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRecord{}, ErrInvalidCredentials
		}
		return AccountRecord{}, fmt.Errorf("account lookup: %w", err)
	}
	if a == nil {
		return AccountRecord{}, ErrInvalidCredentials
	}

	if !VerifyPassword(password, a.PasswordHash) {
		return AccountRecord{}, ErrInvalidCredentials
	}
	return *a, nil
}
