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

type TweetHandler struct {
	db     *gorm.DB
	engine *reactions.Engine
}

func NewTweetHandler(db *gorm.DB, engine *reactions.Engine) *TweetHandler {
	return &TweetHandler{db: db, engine: engine}
}

// GetTweets returns all tweets with reaction totals
func (h *TweetHandler) GetTweets(c *gin.Context) {
	var tweets []models.Tweet

	if err := h.db.Preload("User").Order("created_at desc").Find(&tweets).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	var responses []gin.H
	for _, tweet := range tweets {
		liked, disliked, err := h.engine.Counts(c.Request.Context(), reactions.Target{Type: reactions.TargetTweet, ID: tweet.ID})
		if err != nil {
			respondError(c, err)
			return
		}
		responses = append(responses, gin.H{
			"id":             tweet.ID,
			"body":           tweet.Body,
			"author_id":      tweet.AuthorID,
			"user":           tweet.User.Sanitized(),
			"liked_total":    liked,
			"disliked_total": disliked,
			"created_at":     tweet.CreatedAt,
		})
	}

	if responses == nil {
		responses = []gin.H{}
	}

	c.JSON(http.StatusOK, responses)
}

// GetTweet returns a single tweet by ID
func (h *TweetHandler) GetTweet(c *gin.Context) {
	var tweet models.Tweet
	if err := h.db.Preload("User").First(&tweet, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("Tweet not found"))
		return
	}

	liked, disliked, err := h.engine.Counts(c.Request.Context(), reactions.Target{Type: reactions.TargetTweet, ID: tweet.ID})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             tweet.ID,
		"body":           tweet.Body,
		"author_id":      tweet.AuthorID,
		"user":           tweet.User.Sanitized(),
		"liked_total":    liked,
		"disliked_total": disliked,
		"created_at":     tweet.CreatedAt,
		"updated_at":     tweet.UpdatedAt,
	})
}

// CreateTweet creates a new tweet (PROTECTED)
func (h *TweetHandler) CreateTweet(c *gin.Context) {
	var input models.CreateTweetRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	tweet := models.Tweet{
		Body:     input.Body,
		AuthorID: userID,
	}

	if err := h.db.Create(&tweet).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	h.db.Preload("User").First(&tweet, tweet.ID)

	c.JSON(http.StatusCreated, tweet)
}

// DeleteTweet deletes a tweet (PROTECTED - requires ownership)
func (h *TweetHandler) DeleteTweet(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	var tweet models.Tweet
	if err := h.db.First(&tweet, c.Param("id")).Error; err != nil {
		respondError(c, apperr.NotFound("Tweet not found"))
		return
	}

	if tweet.AuthorID != userID {
		respondError(c, apperr.Forbidden("You can only delete your own tweets"))
		return
	}

	if err := h.db.Delete(&tweet).Error; err != nil {
		respondError(c, apperr.Unavailable(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tweet deleted successfully"})
}
