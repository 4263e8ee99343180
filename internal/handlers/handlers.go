package handlers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/reactions"
)

// Handler combines all handler types
type Handler struct {
	Auth     *AuthHandler
	Reaction *ReactionHandler
	Video    *VideoHandler
	Comment  *CommentHandler
	Tweet    *TweetHandler
	User     *UserHandler
}

// New creates a unified handler with all sub-handlers
func New(db *gorm.DB, cfg auth.Config) *Handler {
	issuer := auth.NewIssuer(cfg)
	verifier := auth.NewVerifier(cfg, db)
	engine := reactions.NewEngine(db)
	resolver := reactions.NewResolver(db)

	return &Handler{
		Auth:     NewAuthHandler(db, issuer, verifier),
		Reaction: NewReactionHandler(engine, resolver),
		Video:    NewVideoHandler(db, engine),
		Comment:  NewCommentHandler(db, engine),
		Tweet:    NewTweetHandler(db, engine),
		User:     NewUserHandler(db),
	}
}

// respondError writes a classified error; unknown errors come out as 500
// with a correlation id and a generic message.
func respondError(c *gin.Context, err error) {
	status, body := apperr.Payload(err)
	c.JSON(status, body)
}
