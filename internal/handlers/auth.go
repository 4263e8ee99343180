package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
)

type AuthHandler struct {
	db       *gorm.DB
	issuer   *auth.Issuer
	verifier *auth.Verifier
}

func NewAuthHandler(db *gorm.DB, issuer *auth.Issuer, verifier *auth.Verifier) *AuthHandler {
	return &AuthHandler{db: db, issuer: issuer, verifier: verifier}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := h.db.Where("username = ? OR email = ?", input.Username, input.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email already exists"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, apperr.Internal(err))
		return
	}

	user := models.User{
		Username: input.Username,
		Email:    input.Email,
		Password: string(hashed),
		FullName: input.FullName,
		Avatar:   input.Avatar,
	}

	if err := h.db.Create(&user).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	resp, err := h.issueSession(&user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	resp, err := h.issueSession(&user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Refresh exchanges a valid refresh token for a new access token plus a
// rotated refresh token. The presented token is single-use: once rotated,
// replaying it fails with INVALID_CREDENTIAL.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input models.RefreshRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.verifier.VerifyRefresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.issueSession(user)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout clears the stored refresh token so the current session cannot be
// extended.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	err := h.db.Model(&models.User{}).Where("id = ?", userID).
		Update("refresh_token_hash", "").Error
	if err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// GetMe returns the current authenticated user
func (h *AuthHandler) GetMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	c.JSON(http.StatusOK, user)
}

// issueSession mints a token pair and records the refresh token hash,
// invalidating whatever refresh token the user held before.
func (h *AuthHandler) issueSession(user *models.User) (*models.AuthResponse, error) {
	accessToken, err := h.issuer.AccessToken(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	refreshToken, err := h.issuer.RefreshToken(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	err = h.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("refresh_token_hash", auth.HashToken(refreshToken)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.UnknownSubject()
		}
		return nil, apperr.Unavailable(err)
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitized(),
	}, nil
}
