package store

import (
	"errors"
	"time"
)

// Caller roles.
const (
	RoleAdmin  = "admin"
	RoleSender = "sender"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// User is an API caller allowed to obtain a JWT for the relay.
type User struct {
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// ValidRole reports whether role is one the relay understands.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleSender
}

// Store persists API callers. It never records notifications.
type Store interface {
	CreateUser(username, passwordHash, role string) error
	GetUser(username string) (*User, error)
	DeleteUser(username string) error
	ListUsers() ([]User, error)
	HasAdminUser() (bool, error)
	UpdateUserRole(username, role string) error
	Close() error
}
