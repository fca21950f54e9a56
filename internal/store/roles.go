package store

import (
	"context"

	"github.com/go-authgate/usergate/internal/models"

	"gorm.io/gorm"
)

func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if taken, err := roleNameTaken(tx, role.Name, ""); err != nil {
			return err
		} else if taken {
			return ErrRoleNameConflict
		}
		return conflict(tx.Create(role).Error, ErrRoleNameConflict)
	})
}

func roleNameTaken(tx *gorm.DB, name, excludeID string) (bool, error) {
	query := tx.Model(&models.Role{}).Where("LOWER(name) = LOWER(?)", name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) GetRoleByID(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		return nil, notFound(err)
	}
	return &role, nil
}

// GetRoleByName finds a role by name, ignoring case
func (s *Store) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := s.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&role).Error; err != nil {
		return nil, notFound(err)
	}
	return &role, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) UpdateRole(ctx context.Context, role *models.Role) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if taken, err := roleNameTaken(tx, role.Name, role.ID); err != nil {
			return err
		} else if taken {
			return ErrRoleNameConflict
		}
		return conflict(tx.Save(role).Error, ErrRoleNameConflict)
	})
}

// DeleteRole deletes a role and removes it from every user holding it
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Role{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

// AssignRole adds the role to the user's roles
func (s *Store) AssignRole(ctx context.Context, userID, roleID string) error {
	user := models.User{ID: userID}
	return s.db.WithContext(ctx).Model(&user).Association("Roles").Append(&models.Role{ID: roleID})
}

// RevokeRole removes the role from the user's roles
func (s *Store) RevokeRole(ctx context.Context, userID, roleID string) error {
	user := models.User{ID: userID}
	return s.db.WithContext(ctx).Model(&user).Association("Roles").Delete(&models.Role{ID: roleID})
}

// ListUserIDsWithRole returns the IDs of users holding the role
func (s *Store) ListUserIDsWithRole(ctx context.Context, roleID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Table("user_roles").Where("role_id = ?", roleID).Pluck("user_id", &ids).Error
	return ids, err
}
