package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/database"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/middleware"
)

type Server struct {
	db      database.Service
	handler *handlers.Handler
	guard   gin.HandlerFunc
}

// New creates and configures the HTTP server
func New(cfg *config.Config) (*http.Server, error) {
	db, err := database.New(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return newWithDB(cfg, db.GetDB(), db), nil
}

func newWithDB(cfg *config.Config, gormDB *gorm.DB, db database.Service) *http.Server {
	authCfg := auth.Config{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
	}

	newServer := &Server{
		db:      db,
		handler: handlers.New(gormDB, authCfg),
		guard:   middleware.AuthGuard(auth.NewVerifier(authCfg, gormDB)),
	}

	router := newServer.RegisterRoutes()

	return &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * 3600,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Health())
	})

	// API routes
	api := r.Group("/api/v1")
	{
		// Auth routes (public)
		api.POST("/auth/register", s.handler.Auth.Register)
		api.POST("/auth/login", s.handler.Auth.Login)
		api.POST("/auth/refresh", s.handler.Auth.Refresh)

		// Reaction counts (public reads, no identity)
		api.GET("/reactions/:targetType/:id/counts", s.handler.Reaction.Counts)

		// Video routes (public reads)
		api.GET("/videos", s.handler.Video.GetVideos)
		api.GET("/videos/:id", s.handler.Video.GetVideo)
		api.GET("/videos/:id/comments", s.handler.Comment.GetComments)

		// Tweet routes (public reads)
		api.GET("/tweets", s.handler.Tweet.GetTweets)
		api.GET("/tweets/:id", s.handler.Tweet.GetTweet)

		// User routes (public reads)
		api.GET("/users/:id", s.handler.User.GetUserProfile)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(s.guard)
		{
			// Auth protected routes
			protected.GET("/me", s.handler.Auth.GetMe)
			protected.POST("/auth/logout", s.handler.Auth.Logout)

			// Reaction protected routes
			protected.PATCH("/reactions", s.handler.Reaction.Toggle)
			protected.GET("/reactions/mine", s.handler.Reaction.Mine)
			protected.GET("/reactions/videos", s.handler.Reaction.LikedVideos)

			// Video protected routes
			protected.POST("/videos", s.handler.Video.CreateVideo)
			protected.DELETE("/videos/:id", s.handler.Video.DeleteVideo)
			protected.POST("/videos/:id/comments", s.handler.Comment.CreateComment)
			protected.DELETE("/comments/:id", s.handler.Comment.DeleteComment)

			// Tweet protected routes
			protected.POST("/tweets", s.handler.Tweet.CreateTweet)
			protected.DELETE("/tweets/:id", s.handler.Tweet.DeleteTweet)

			// User protected routes
			protected.PUT("/users/:id", s.handler.User.UpdateUserProfile)
		}
	}

	return r
}
