package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/store"

	"github.com/google/uuid"
)

// RoleInput is the data accepted when creating or updating a role
type RoleInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *UserService) requireRoles() error {
	if !s.config.RolesEnabled {
		return ErrRolesNotConfigured
	}
	return nil
}

func (s *UserService) GetRole(ctx context.Context, id string) (*models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, err
	}
	role, err := s.store.GetRoleByID(ctx, id)
	if err != nil {
		return nil, roleNotFound(err)
	}
	return role, nil
}

func (s *UserService) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, err
	}
	role, err := s.store.GetRoleByName(ctx, name)
	if err != nil {
		return nil, roleNotFound(err)
	}
	return role, nil
}

func (s *UserService) ListRoles(ctx context.Context) ([]models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx)
}

// AddRole creates a role. Role names are unique ignoring case.
func (s *UserService) AddRole(ctx context.Context, input RoleInput) (*models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, err
	}
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	role := &models.Role{
		ID:   uuid.New().String(),
		Name: strings.TrimSpace(*input.Name),
	}
	if input.Description != nil {
		role.Description = *input.Description
	}

	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, mapRoleConflict(err)
	}

	s.metrics.RecordRoleChange("create")
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventRoleCreated,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceRole,
		ResourceID:   role.ID,
		ResourceName: role.Name,
		Action:       "Role created",
		Success:      true,
	})
	return role, nil
}

func (s *UserService) UpdateRole(ctx context.Context, id string, input RoleInput) (*models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, err
	}
	role, err := s.store.GetRoleByID(ctx, id)
	if err != nil {
		return nil, roleNotFound(err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		role.Name = name
	}
	if input.Description != nil {
		role.Description = *input.Description
	}

	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, mapRoleConflict(err)
	}
	s.invalidateRoleHolders(ctx, role.ID)

	s.metrics.RecordRoleChange("update")
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventRoleUpdated,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceRole,
		ResourceID:   role.ID,
		ResourceName: role.Name,
		Action:       "Role updated",
		Success:      true,
	})
	return role, nil
}

// DeleteRole deletes a role, revoking it from every holder, and returns it
func (s *UserService) DeleteRole(ctx context.Context, id string) (*models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, err
	}
	role, err := s.store.GetRoleByID(ctx, id)
	if err != nil {
		return nil, roleNotFound(err)
	}

	holders, err := s.store.ListUserIDsWithRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return nil, roleNotFound(err)
	}
	for _, userID := range holders {
		s.InvalidateUserCache(ctx, userID)
	}

	s.metrics.RecordRoleChange("delete")
	s.audit(ctx, AuditLogEntry{
		EventType:    models.EventRoleDeleted,
		Severity:     models.SeverityWarning,
		ResourceType: models.ResourceRole,
		ResourceID:   role.ID,
		ResourceName: role.Name,
		Action:       "Role deleted",
		Details:      models.AuditDetails{"holders": len(holders)},
		Success:      true,
	})
	return role, nil
}

// AssignRole gives the role to the user and returns the updated user
func (s *UserService) AssignRole(ctx context.Context, userID, roleID string) (*models.User, error) {
	user, role, err := s.userAndRole(ctx, userID, roleID)
	if err != nil {
		return nil, err
	}
	if user.HasRole(role.Name) {
		return nil, fmt.Errorf("%w '%s'", ErrRoleAlreadyAssigned, role.Name)
	}

	if err := s.store.AssignRole(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}
	return s.afterRoleChange(ctx, user, role, "assign")
}

// RevokeRole takes the role from the user and returns the updated user
func (s *UserService) RevokeRole(ctx context.Context, userID, roleID string) (*models.User, error) {
	user, role, err := s.userAndRole(ctx, userID, roleID)
	if err != nil {
		return nil, err
	}
	if !user.HasRole(role.Name) {
		return nil, fmt.Errorf("%w '%s'", ErrRoleNotAssigned, role.Name)
	}

	if err := s.store.RevokeRole(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}
	return s.afterRoleChange(ctx, user, role, "revoke")
}

func (s *UserService) userAndRole(
	ctx context.Context,
	userID, roleID string,
) (*models.User, *models.Role, error) {
	if err := s.requireRoles(); err != nil {
		return nil, nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}
	role, err := s.store.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, nil, roleNotFound(err)
	}
	return user, role, nil
}

func (s *UserService) afterRoleChange(
	ctx context.Context,
	user *models.User,
	role *models.Role,
	operation string,
) (*models.User, error) {
	s.InvalidateUserCache(ctx, user.ID)

	updated, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	eventType := models.EventRoleAssigned
	action := "Role assigned"
	if operation == "revoke" {
		eventType = models.EventRoleRevoked
		action = "Role revoked"
	}

	s.metrics.RecordRoleChange(operation)
	s.audit(ctx, AuditLogEntry{
		EventType:    eventType,
		Severity:     models.SeverityWarning,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		ResourceName: user.DisplayName(),
		Action:       action,
		Details: models.AuditDetails{
			"role_id":   role.ID,
			"role_name": role.Name,
		},
		Success: true,
	})
	return updated, nil
}

func (s *UserService) invalidateRoleHolders(ctx context.Context, roleID string) {
	holders, err := s.store.ListUserIDsWithRole(ctx, roleID)
	if err != nil {
		return
	}
	for _, userID := range holders {
		s.InvalidateUserCache(ctx, userID)
	}
}

func roleNotFound(err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return ErrRoleNotFound
	}
	return err
}

func mapRoleConflict(err error) error {
	if errors.Is(err, store.ErrRoleNameConflict) {
		return ErrRoleNameTaken
	}
	return err
}
