package domain

import (
	"fmt"
	"time"
)

// Role is the closed set of authorization roles a user can hold.
type Role string

const (
	RoleRegular    Role = "REGULAR"
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
)

// ParseRole validates a raw role string against the closed enumeration.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleRegular, RoleAdmin, RoleSupervisor:
		return Role(raw), nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// User is the domain model for managed accounts. Email doubles as the login key.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         Role
	BirthDate    *time.Time
	Phone        string
	NationalID   string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
