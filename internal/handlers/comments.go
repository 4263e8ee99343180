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

type CommentHandler struct {
	db     *gorm.DB
	engine *reactions.Engine
}

func NewCommentHandler(db *gorm.DB, engine *reactions.Engine) *CommentHandler {
	return &CommentHandler{db: db, engine: engine}
}

// GetComments returns all comments for a video with reaction totals
func (h *CommentHandler) GetComments(c *gin.Context) {
	videoID := c.Param("id")
	var comments []models.Comment

	if err := h.db.Where("video_id = ?", videoID).Preload("User").Order("created_at desc").Find(&comments).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	var responses []gin.H
	for _, comment := range comments {
		liked, disliked, err := h.engine.Counts(c.Request.Context(), reactions.Target{Type: reactions.TargetComment, ID: comment.ID})
		if err != nil {
			respondError(c, err)
			return
		}
		responses = append(responses, gin.H{
			"id":             comment.ID,
			"body":           comment.Body,
			"author_id":      comment.AuthorID,
			"video_id":       comment.VideoID,
			"user":           comment.User.Sanitized(),
			"liked_total":    liked,
			"disliked_total": disliked,
			"created_at":     comment.CreatedAt,
			"updated_at":     comment.UpdatedAt,
		})
	}

	if responses == nil {
		responses = []gin.H{}
	}

	c.JSON(http.StatusOK, responses)
}

// CreateComment creates a new comment on a video (PROTECTED)
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var input models.CreateCommentRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	// Verify video exists
	var video models.Video
	if err := h.db.First(&video, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("Video not found"))
		return
	}

	comment := models.Comment{
		Body:     input.Body,
		VideoID:  video.ID,
		AuthorID: userID,
	}

	if err := h.db.Create(&comment).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	h.db.Preload("User").First(&comment, comment.ID)

	c.JSON(http.StatusCreated, comment)
}

// DeleteComment deletes a comment (PROTECTED - requires ownership)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	var comment models.Comment
	if err := h.db.First(&comment, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("Comment not found"))
		return
	}

	if comment.AuthorID != userID {
		respondError(c, apperr.Forbidden("You can only delete your own comments"))
		return
	}

	if err := h.db.Delete(&comment).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
