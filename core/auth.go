package core

import (
	"errors"
	"strings"
)

// Roles assignable to an account.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Principal represents an authenticated caller derived from a bearer token.
type Principal struct {
	Username string
}

var (
	// ErrInvalidCredentials is returned when username/password is wrong.
	// It deliberately does not reveal whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthService defines credential verification behaviour.
type AuthService interface {
	Authenticate(username, password string) (AccountRecord, error)
}

// RoleForUsername applies the registration role policy: administrative-looking
// usernames get ADMIN, everyone else USER.
func RoleForUsername(username string) string {
	u := strings.ToLower(username)
	if strings.Contains(u, "admin") {
		return RoleAdmin
	}
	return RoleUser
}
