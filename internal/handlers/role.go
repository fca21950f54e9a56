package handlers

import (
	"net/http"

	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"

	"github.com/gin-gonic/gin"
)

// RoleHandler serves role management and role assignment routes
type RoleHandler struct {
	userService *services.UserService
}

func NewRoleHandler(us *services.UserService) *RoleHandler {
	return &RoleHandler{userService: us}
}

type userRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
	RoleID string `json:"role_id" binding:"required"`
}

func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.userService.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]models.RoleRead, 0, len(roles))
	for i := range roles {
		items = append(items, roles[i].ToRead())
	}
	c.JSON(http.StatusOK, items)
}

func (h *RoleHandler) CreateRole(c *gin.Context) {
	var input services.RoleInput
	if !bindJSON(c, &input) {
		return
	}

	role, err := h.userService.AddRole(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, role.ToRead())
}

func (h *RoleHandler) UpdateRole(c *gin.Context) {
	var input services.RoleInput
	if !bindJSON(c, &input) {
		return
	}

	role, err := h.userService.UpdateRole(c.Request.Context(), c.Param("role_id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role.ToRead())
}

// DeleteRole deletes a role and returns the deleted record
func (h *RoleHandler) DeleteRole(c *gin.Context) {
	role, err := h.userService.DeleteRole(c.Request.Context(), c.Param("role_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, role.ToRead())
}

// AssignRole gives a role to a user and returns the updated user
func (h *RoleHandler) AssignRole(c *gin.Context) {
	var req userRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.AssignRole(c.Request.Context(), req.UserID, req.RoleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}

// RevokeRole takes a role from a user and returns the updated user
func (h *RoleHandler) RevokeRole(c *gin.Context) {
	var req userRoleRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.RevokeRole(c.Request.Context(), req.UserID, req.RoleID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}
