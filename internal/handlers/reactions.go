package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/reactions"
)

type ReactionHandler struct {
	engine   *reactions.Engine
	resolver *reactions.Resolver
}

func NewReactionHandler(engine *reactions.Engine, resolver *reactions.Resolver) *ReactionHandler {
	return &ReactionHandler{engine: engine, resolver: resolver}
}

// Toggle handles PATCH /reactions?commentId=|videoId=|tweetId=&reaction=true|false.
// reaction=true likes, reaction=false dislikes; repeating the held state
// removes it.
func (h *ReactionHandler) Toggle(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	requested, err := reactions.RequestedState(c.Query("reaction"))
	if err != nil {
		respondError(c, err)
		return
	}

	target, err := h.resolver.ResolveQuery(
		c.Request.Context(),
		c.Query("commentId"),
		c.Query("videoId"),
		c.Query("tweetId"),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.engine.Apply(c.Request.Context(), userID, target, requested)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"current_state":  result.CurrentState,
		"liked_total":    result.LikedTotal,
		"disliked_total": result.DislikedTotal,
		"target_type":    target.Type,
		"target_id":      target.ID,
	})
}

// Counts handles GET /reactions/:targetType/:id/counts. Public: no
// identity is involved in a count read.
func (h *ReactionHandler) Counts(c *gin.Context) {
	tt, err := reactions.ParseTargetType(c.Param("targetType"))
	if err != nil {
		respondError(c, err)
		return
	}

	target, err := h.resolver.Resolve(c.Request.Context(), tt, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	liked, disliked, err := h.engine.Counts(c.Request.Context(), target)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"liked_total":    liked,
		"disliked_total": disliked,
	})
}

// Mine handles GET /reactions/mine: everything the caller has reacted to,
// partitioned by state.
func (h *ReactionHandler) Mine(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	liked, disliked, err := h.engine.Mine(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"liked":    liked,
		"disliked": disliked,
	})
}

// LikedVideos handles GET /reactions/videos.
func (h *ReactionHandler) LikedVideos(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, apperr.MissingCredential("not authenticated"))
		return
	}

	videos, err := h.engine.LikedVideos(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, videos)
}
