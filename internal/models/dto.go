package models

import "time"

// UserRead is the public representation of a user
type UserRead struct {
	ID            string             `json:"id"`
	Email         string             `json:"email"`
	Username      *string            `json:"username,omitempty"`
	IsActive      bool               `json:"is_active"`
	IsVerified    bool               `json:"is_verified"`
	Roles         []RoleRead         `json:"roles"`
	OAuthAccounts []OAuthAccountRead `json:"oauth_accounts"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// RoleRead is the public representation of a role
type RoleRead struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// OAuthAccountRead is the public representation of a linked OAuth account.
// Provider tokens are never exposed.
type OAuthAccountRead struct {
	ID           string `json:"id"`
	OAuthName    string `json:"oauth_name"`
	AccountID    string `json:"account_id"`
	AccountEmail string `json:"account_email"`
}

// ToRead converts a user to its public representation
func (u *User) ToRead() UserRead {
	roles := make([]RoleRead, 0, len(u.Roles))
	for i := range u.Roles {
		roles = append(roles, u.Roles[i].ToRead())
	}

	accounts := make([]OAuthAccountRead, 0, len(u.OAuthAccounts))
	for _, acc := range u.OAuthAccounts {
		accounts = append(accounts, OAuthAccountRead{
			ID:           acc.ID,
			OAuthName:    acc.OAuthName,
			AccountID:    acc.AccountID,
			AccountEmail: acc.AccountEmail,
		})
	}

	return UserRead{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		IsActive:      u.IsActive,
		IsVerified:    u.IsVerified,
		Roles:         roles,
		OAuthAccounts: accounts,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// ToRead converts a role to its public representation
func (r *Role) ToRead() RoleRead {
	return RoleRead{ID: r.ID, Name: r.Name, Description: r.Description}
}
