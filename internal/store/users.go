package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-authgate/usergate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// identifierColumns maps identifier kinds to user columns
var identifierColumns = map[string]string{
	"email":    "email",
	"username": "username",
}

func identifierColumn(kind string) (string, error) {
	column, ok := identifierColumns[kind]
	if !ok {
		return "", fmt.Errorf("unsupported user identifier: %s", kind)
	}
	return column, nil
}

// preloadUser loads roles and linked OAuth accounts
func preloadUser(db *gorm.DB) *gorm.DB {
	return db.Preload("Roles", func(db *gorm.DB) *gorm.DB {
		return db.Order("roles.name ASC")
	}).Preload("OAuthAccounts")
}

// CreateUser inserts a user after checking email and username case-insensitively
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	normalizeUsername(user)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkIdentifiersFree(tx, user, ""); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(user).Error
	})
	return s.identifierConflict(ctx, user, "", err)
}

// normalizeUsername stores a blank username as NULL, which the unique index ignores
func normalizeUsername(user *models.User) {
	if user.Username == nil {
		return
	}
	username := strings.TrimSpace(*user.Username)
	if username == "" {
		user.Username = nil
		return
	}
	user.Username = &username
}

// identifierConflict names the identifier behind a unique violation that slipped
// past checkIdentifiersFree, e.g. a concurrent insert.
func (s *Store) identifierConflict(
	ctx context.Context,
	user *models.User,
	excludeID string,
	err error,
) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	if taken := checkIdentifiersFree(s.db.WithContext(ctx), user, excludeID); taken != nil {
		return taken
	}
	return fmt.Errorf("%w: %v", ErrUserConflict, err)
}

// checkIdentifiersFree returns a conflict error when another user (other than
// excludeID) already holds the user's email or username
func checkIdentifiersFree(tx *gorm.DB, user *models.User, excludeID string) error {
	taken, err := identifierTaken(tx, "email", user.Email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailConflict
	}

	if user.Username != nil && *user.Username != "" {
		taken, err := identifierTaken(tx, "username", *user.Username, excludeID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameConflict
		}
	}
	return nil
}

func identifierTaken(tx *gorm.DB, column, value, excludeID string) (bool, error) {
	query := tx.Model(&models.User{}).Where("LOWER("+column+") = LOWER(?)", value)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserExistsByIdentifier reports whether a user holds the identifier (case-insensitive)
func (s *Store) UserExistsByIdentifier(ctx context.Context, kind, value string) (bool, error) {
	column, err := identifierColumn(kind)
	if err != nil {
		return false, err
	}
	return identifierTaken(s.db.WithContext(ctx), column, value, "")
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := preloadUser(s.db.WithContext(ctx)).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByIdentifier finds a user by email or username, ignoring case
func (s *Store) GetUserByIdentifier(ctx context.Context, kind, value string) (*models.User, error) {
	column, err := identifierColumn(kind)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = preloadUser(s.db.WithContext(ctx)).
		Where("LOWER("+column+") = LOWER(?)", value).
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetUserByEmail finds a user by email address, ignoring case
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.GetUserByIdentifier(ctx, "email", email)
}

// UpdateUser saves the user's own columns; roles and OAuth accounts are untouched
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	normalizeUsername(user)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkIdentifiersFree(tx, user, user.ID); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(user).Error
	})
	return s.identifierConflict(ctx, user, user.ID, err)
}

// UpdateUserFields updates selected columns of a user
func (s *Store) UpdateUserFields(ctx context.Context, id string, fields map[string]any) error {
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteUser deletes a user with its role assignments and OAuth accounts
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{ID: id}
		if err := tx.Model(&user).Association("Roles").Clear(); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.OAuthAccount{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.User{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// ListUsers returns a page of users ordered by creation time, optionally
// filtered by a search keyword matched against email and username
func (s *Store) ListUsers(
	ctx context.Context,
	params PaginationParams,
) ([]models.User, PaginationResult, error) {
	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.User{})
		if params.Search != "" {
			pattern := "%" + params.Search + "%"
			q = q.Where(
				"LOWER(email) LIKE LOWER(?) OR LOWER(username) LIKE LOWER(?)",
				pattern,
				pattern,
			)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	var users []models.User
	if err := preloadUser(query()).
		Order("created_at ASC, id ASC").
		Offset(params.Offset()).
		Limit(params.PageSize).
		Find(&users).Error; err != nil {
		return nil, PaginationResult{}, err
	}

	return users, CalculatePagination(total, params.Page, params.PageSize), nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func (s *Store) CountActiveUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

func (s *Store) CountVerifiedUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_verified = ?", true).Count(&count).Error
	return count, err
}
