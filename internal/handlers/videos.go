package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/reactions"
)

type VideoHandler struct {
	db     *gorm.DB
	engine *reactions.Engine
}

func NewVideoHandler(db *gorm.DB, engine *reactions.Engine) *VideoHandler {
	return &VideoHandler{db: db, engine: engine}
}

// GetVideos returns all published videos with their reaction totals
func (h *VideoHandler) GetVideos(c *gin.Context) {
	var videos []models.Video

	if err := h.db.Preload("Owner").Where("published = ?", true).Order("created_at desc").Find(&videos).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	var responses []gin.H
	for _, video := range videos {
		liked, disliked, err := h.engine.Counts(c.Request.Context(), reactions.Target{Type: reactions.TargetVideo, ID: video.ID})
		if err != nil {
			respondError(c, err)
			return
		}
		responses = append(responses, gin.H{
			"id":             video.ID,
			"title":          video.Title,
			"description":    video.Description,
			"thumbnail":      video.Thumbnail,
			"duration":       video.Duration,
			"owner":          video.Owner.Sanitized(),
			"liked_total":    liked,
			"disliked_total": disliked,
			"created_at":     video.CreatedAt,
		})
	}

	// If no videos, return empty array not null
	if responses == nil {
		responses = []gin.H{}
	}

	c.JSON(http.StatusOK, responses)
}

// GetVideo returns a single video by ID with its reaction totals
func (h *VideoHandler) GetVideo(c *gin.Context) {
	var video models.Video
	if err := h.db.Preload("Owner").First(&video, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("Video not found"))
		return
	}

	liked, disliked, err := h.engine.Counts(c.Request.Context(), reactions.Target{Type: reactions.TargetVideo, ID: video.ID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             video.ID,
		"title":          video.Title,
		"description":    video.Description,
		"thumbnail":      video.Thumbnail,
		"duration":       video.Duration,
		"owner":          video.Owner.Sanitized(),
		"liked_total":    liked,
		"disliked_total": disliked,
		"created_at":     video.CreatedAt,
		"updated_at":     video.UpdatedAt,
	})
}

// CreateVideo publishes video metadata (PROTECTED)
func (h *VideoHandler) CreateVideo(c *gin.Context) {
	var input models.CreateVideoRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	video := models.Video{
		Title:       input.Title,
		Description: input.Description,
		Thumbnail:   input.Thumbnail,
		Duration:    input.Duration,
		OwnerID:     userID,
		Published:   true,
	}

	if err := h.db.Create(&video).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	h.db.Preload("Owner").First(&video, video.ID)

	c.JSON(http.StatusCreated, video)
}

// DeleteVideo deletes a video (PROTECTED - requires ownership)
func (h *VideoHandler) DeleteVideo(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	var video models.Video
	if err := h.db.First(&video, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("Video not found"))
		return
	}

	if video.OwnerID != userID {
		respondError(c, apperr.Forbidden("You can only delete your own videos"))
		return
	}

	if err := h.db.Delete(&video).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully"})
}
