package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmailConflict is returned when an email is already registered (case-insensitive)
	ErrEmailConflict = errors.New("email already exists")

	// ErrUsernameConflict is returned when a username already exists (case-insensitive)
	ErrUsernameConflict = errors.New("username already exists")

	// ErrUserConflict is returned when a unique user column is violated and the
	// holder can no longer be found
	ErrUserConflict = errors.New("user identifier already exists")

	// ErrRoleNameConflict is returned when a role name already exists
	ErrRoleNameConflict = errors.New("role name already exists")

	// ErrOAuthAccountConflict is returned when a provider account is already linked
	ErrOAuthAccountConflict = errors.New("oauth account already linked")
)
