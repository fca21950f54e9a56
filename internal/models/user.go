package models

import (
	"strings"
	"time"
)

type User struct {
	ID           string  `gorm:"primaryKey;type:varchar(36)"`
	Email        string  `gorm:"uniqueIndex;not null"`
	Username     *string `gorm:"uniqueIndex"` // only required when users log in by username
	PasswordHash string  `gorm:"not null"`
	IsActive     bool    `gorm:"not null"`
	IsVerified   bool    `gorm:"not null;default:false"`

	Roles         []Role         `gorm:"many2many:user_roles;constraint:OnDelete:CASCADE"`
	OAuthAccounts []OAuthAccount `gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRole reports whether the user holds the named role (case-insensitive)
func (u *User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if strings.EqualFold(role.Name, name) {
			return true
		}
	}
	return false
}

// RoleNames returns the names of all roles held by the user
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return names
}

// Identifier returns the login identifier of the given kind ("email" or "username")
func (u *User) Identifier(kind string) string {
	if kind == "username" {
		if u.Username == nil {
			return ""
		}
		return *u.Username
	}
	return u.Email
}

// DisplayName returns the username when set and the email otherwise
func (u *User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}

// Role is a named permission group assignable to users
type Role struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAuthAccount links a user to an account at an OAuth2 provider
type OAuthAccount struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	UserID       string `gorm:"type:varchar(36);not null;index"`
	OAuthName    string `gorm:"column:oauth_name;not null;uniqueIndex:idx_oauth_name_account,priority:1"` // "github", "gitea", ...
	AccountID    string `gorm:"not null;uniqueIndex:idx_oauth_name_account,priority:2"` // provider's user ID
	AccountEmail string `gorm:"not null"`

	// Token storage (should be encrypted in production)
	AccessToken  string `gorm:"type:text;not null"`
	RefreshToken string `gorm:"type:text"`
	ExpiresAt    *int64 // unix seconds

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OAuthAccount) TableName() string {
	return "oauth_accounts"
}
