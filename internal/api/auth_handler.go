package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"kairos/fitness-server/internal/domain"
	"kairos/fitness-server/internal/service"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     domain.Role `json:"role" binding:"required,oneof=trainer client"`

	// Trainer-only; falls back to the default roster limit when omitted.
	Capacity int `json:"capacity,omitempty" binding:"omitempty,min=1"`

	// Client-only profile snapshot.
	Age           int      `json:"age,omitempty" binding:"omitempty,min=1,max=120"`
	Goals         []string `json:"goals,omitempty"`
	ActivityLevel string   `json:"activityLevel,omitempty" binding:"omitempty,oneof=sedentary light moderate active athlete"`
}

// UserResponse excludes sensitive info like password hash
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`

	Capacity         int  `json:"capacity,omitempty"`
	AcceptingClients bool `json:"acceptingClients,omitempty"`
	ActiveClients    int  `json:"activeClients,omitempty"`

	Age           int      `json:"age,omitempty"`
	Goals         []string `json:"goals,omitempty"`
	ActivityLevel string   `json:"activityLevel,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// MapUserToResponse converts a domain.User to the public DTO.
func MapUserToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:               u.ID.Hex(),
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		CreatedAt:        u.CreatedAt,
		Capacity:         u.Capacity,
		AcceptingClients: u.AcceptingClients,
		ActiveClients:    u.ActiveClients,
		Age:              u.Age,
		Goals:            u.Goals,
		ActivityLevel:    u.ActivityLevel,
	}
}

// --- Handler Methods ---

// Register creates a new user account (trainer or client).
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:          req.Name,
		Email:         req.Email,
		Password:      req.Password,
		Role:          req.Role,
		Capacity:      req.Capacity,
		Age:           req.Age,
		Goals:         req.Goals,
		ActivityLevel: req.ActivityLevel,
	})
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			abortWithError(c, http.StatusConflict, err.Error())
		} else if errors.Is(err, service.ErrHashingFailed) {
			abortWithError(c, http.StatusInternalServerError, "Could not process registration")
		} else {
			abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred during registration")
		}
		return
	}

	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// Login authenticates a user and returns a JWT token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrAuthenticationFailed) {
			abortWithError(c, http.StatusUnauthorized, err.Error())
		} else {
			abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred during login")
		}
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  MapUserToResponse(user),
	})
}
