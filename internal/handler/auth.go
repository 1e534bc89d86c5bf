package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartride/internal/domain"
	"smartride/internal/middleware"
	"smartride/internal/service"
)

// AuthHandler handles HTTP requests for accounts and tokens.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest is the HTTP request body for user registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest is the HTTP request body for login. Identifier accepts the
// username or the email address.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// UserResponse is the HTTP response for user data.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, "account created", gin.H{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginRequest{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "logged in", gin.H{
		"token": result.Token,
		"user":  toUserResponse(result.User),
	})
}

// Verify handles GET /v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "token valid", gin.H{"user": toUserResponse(user)})
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		respondError(c, domain.AuthenticationError{Reason: "not authenticated"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, "logged out", nil)
}
