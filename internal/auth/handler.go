package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-market/marketplace/marketplace-backend/internal/users"
)

type Handler struct {
	users  users.Repository
	tokens *TokenManager
	logger *zap.Logger
}

func NewHandler(repo users.Repository, tokens *TokenManager, logger *zap.Logger) *Handler {
	return &Handler{users: repo, tokens: tokens, logger: logger}
}

type signupRequest struct {
	Username string     `json:"username" binding:"required"`
	Password string     `json:"password" binding:"required"`
	Role     users.Role `json:"role" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup handles POST /api/signup
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username, password and role are required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username must not be blank"})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"message": "role must be one of NGO, buyer, auditor"})
		return
	}

	hash, err := users.HashPassword(req.Password)
	if errors.Is(err, users.ErrPasswordTooLong) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "password must be at most 72 bytes"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	user := &users.User{Username: req.Username, Password: hash, Role: req.Role}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, users.ErrDuplicateUsername) {
			c.JSON(http.StatusConflict, gin.H{"message": "User already exists"})
			return
		}
		h.logger.Error("Failed to create user", zap.Error(err), zap.String("username", req.Username))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
}

// Login handles POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}

	user, err := h.users.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		h.logger.Error("Failed to look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error: " + err.Error()})
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	ok, err := users.CheckPassword(user.Password, req.Password)
	if err != nil {
		h.logger.Warn("Stored password hash unreadable", zap.Error(err), zap.Int64("user_id", user.ID))
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"role":         user.Role,
		"username":     user.Username,
	})
}
