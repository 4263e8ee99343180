package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
)

type UserHandler struct {
	db *gorm.DB
}

func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{db: db}
}

// GetUserProfile returns a public user profile
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	var user models.User
	if err := h.db.First(&user, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("User not found"))
		return
	}

	c.JSON(http.StatusOK, user.Sanitized())
}

// UpdateUserProfile updates the caller's own profile (PROTECTED)
func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	var input struct {
		FullName string `json:"full_name"`
		Avatar   string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("User not found"))
		return
	}

	if user.ID != userID {
		respondError(c, apperr.Forbidden("You can only edit your own profile"))
		return
	}

	if input.FullName != "" {
		user.FullName = input.FullName
	}
	if input.Avatar != "" {
		user.Avatar = input.Avatar
	}

	if err := h.db.Save(&user).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	c.JSON(http.StatusOK, user.Sanitized())
}
