package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-authgate/usergate/internal/middleware"
	"github.com/go-authgate/usergate/internal/models"
	"github.com/go-authgate/usergate/internal/services"
	"github.com/go-authgate/usergate/internal/store"

	"github.com/gin-gonic/gin"
)

// UserHandler serves registration, verification, password recovery, the current
// user and user management routes
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(us *services.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// currentUserUpdate is what users may change on their own account
type currentUserUpdate struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Register creates an account
func (h *UserHandler) Register(c *gin.Context) {
	var input services.RegistrationInput
	if !bindJSON(c, &input) {
		return
	}

	user, err := h.userService.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.ToRead())
}

// Verify consumes the verification token from the "token" query parameter
func (h *UserHandler) Verify(c *gin.Context) {
	tok := c.Query("token")
	if tok == "" {
		respondDetail(c, http.StatusBadRequest, "Missing required query parameter 'token'")
		return
	}

	user, err := h.userService.Verify(c.Request.Context(), tok)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.ToRead())
}

// ForgotPassword answers the same way whether or not the email is known
func (h *UserHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.InitiatePasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, nil)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, nil)
}

func (h *UserHandler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c).ToRead())
}

func (h *UserHandler) UpdateCurrentUser(c *gin.Context) {
	var req currentUserUpdate
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.UpdateUser(
		c.Request.Context(),
		middleware.CurrentUser(c).ID,
		services.UserUpdate{Email: req.Email, Username: req.Username, Password: req.Password},
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}

// ListUsers returns a page of users (query: page, page_size, search)
func (h *UserHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(store.DefaultPageSize)))

	users, pagination, err := h.userService.ListUsers(
		c.Request.Context(),
		store.NewPaginationParams(page, pageSize, c.Query("search")),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]models.UserRead, 0, len(users))
	for i := range users {
		items = append(items, users[i].ToRead())
	}
	c.JSON(http.StatusOK, gin.H{
		"users":      items,
		"pagination": pagination,
	})
}

func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	var update services.UserUpdate
	if !bindJSON(c, &update) {
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), c.Param("user_id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}

// DeleteUser deletes a user and returns the deleted record
func (h *UserHandler) DeleteUser(c *gin.Context) {
	user, err := h.userService.DeleteUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToRead())
}
