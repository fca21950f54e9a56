package store

import (
	"context"

	"github.com/go-authgate/usergate/internal/models"
)

// GetOAuthAccount finds a linked account by provider name and provider account ID
func (s *Store) GetOAuthAccount(
	ctx context.Context,
	oauthName, accountID string,
) (*models.OAuthAccount, error) {
	var account models.OAuthAccount
	err := s.db.WithContext(ctx).
		Where("oauth_name = ? AND account_id = ?", oauthName, accountID).
		First(&account).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

// GetOAuthAccountsByUserID returns all OAuth accounts linked to a user
func (s *Store) GetOAuthAccountsByUserID(
	ctx context.Context,
	userID string,
) ([]models.OAuthAccount, error) {
	var accounts []models.OAuthAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// AddOAuthAccount links a provider account to a user
func (s *Store) AddOAuthAccount(ctx context.Context, account *models.OAuthAccount) error {
	return conflict(s.db.WithContext(ctx).Create(account).Error, ErrOAuthAccountConflict)
}

// UpdateOAuthAccount saves refreshed provider tokens
func (s *Store) UpdateOAuthAccount(ctx context.Context, account *models.OAuthAccount) error {
	return s.db.WithContext(ctx).Save(account).Error
}

// DeleteOAuthAccount unlinks a provider account
func (s *Store) DeleteOAuthAccount(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.OAuthAccount{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
