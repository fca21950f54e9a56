package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-authgate/usergate/internal/config"
	"github.com/go-authgate/usergate/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRole(t *testing.T, body []byte) models.RoleRead {
	t.Helper()
	var role models.RoleRead
	require.NoError(t, json.Unmarshal(body, &role))
	return role
}

func TestRoleManagement(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT)
	env.createUser(t, "admin@example.com", true, true, "admin")
	member := env.createUser(t, "member@example.com", true, true)
	admin := env.loginAs(t, "admin@example.com")

	// Create
	w := env.do(t, http.MethodPost, "/users/roles", gin.H{"name": "editor", "description": "Edits"}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	editor := decodeRole(t, w.Body.Bytes())
	assert.Equal(t, "editor", editor.Name)

	w = env.do(t, http.MethodPost, "/users/roles", gin.H{"name": "EDITOR"}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	// List
	w = env.do(t, http.MethodGet, "/users/roles", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	var roles []models.RoleRead
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roles))
	assert.Len(t, roles, 2)

	// Update
	w = env.do(t, http.MethodPatch, "/users/roles/"+editor.ID, gin.H{"description": "Edits content"}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Edits content", decodeRole(t, w.Body.Bytes()).Description)

	// Assign
	assignment := gin.H{"user_id": member.ID, "role_id": editor.ID}
	w = env.do(t, http.MethodPut, "/users/roles/assign", assignment, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assigned := decodeUser(t, w)
	require.Len(t, assigned.Roles, 1)
	assert.Equal(t, "editor", assigned.Roles[0].Name)

	w = env.do(t, http.MethodPut, "/users/roles/assign", assignment, admin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user already has role 'editor'", decodeError(t, w).Detail)

	// Revoke
	w = env.do(t, http.MethodPut, "/users/roles/revoke", assignment, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeUser(t, w).Roles)

	w = env.do(t, http.MethodPut, "/users/roles/revoke", assignment, admin)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "user does not have role 'editor'", decodeError(t, w).Detail)

	// Delete
	w = env.do(t, http.MethodDelete, "/users/roles/"+editor.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, editor.ID, decodeRole(t, w.Body.Bytes()).ID)

	w = env.do(t, http.MethodDelete, "/users/roles/"+editor.ID, nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoleManagement_Validation(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT)
	env.createUser(t, "admin@example.com", true, true, "admin")
	admin := env.loginAs(t, "admin@example.com")

	w := env.do(t, http.MethodPut, "/users/roles/assign", gin.H{"user_id": "u"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/users/roles/assign", gin.H{"user_id": "missing", "role_id": "missing"}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoleManagement_RolesDisabled(t *testing.T) {
	env := newTestEnv(t, config.AuthBackendJWT, func(cfg *config.Config) {
		cfg.RolesEnabled = false
	})
	env.createUser(t, "admin@example.com", true, true, "admin")
	admin := env.loginAs(t, "admin@example.com")

	w := env.do(t, http.MethodGet, "/users/roles", nil, admin)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", decodeError(t, w).Detail)
}
