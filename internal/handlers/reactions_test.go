package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
)

type fixture struct {
	db     *gorm.DB
	router *gin.Engine
	issuer *auth.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Video{}, &models.Comment{}, &models.Tweet{}, &models.Reaction{},
	))

	cfg := auth.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "test",
	}

	h := New(db, cfg)
	guard := middleware.AuthGuard(auth.NewVerifier(cfg, db))

	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/reactions/:targetType/:id/counts", h.Reaction.Counts)
	protected := api.Group("")
	protected.Use(guard)
	protected.PATCH("/reactions", h.Reaction.Toggle)
	protected.GET("/reactions/mine", h.Reaction.Mine)

	return &fixture{db: db, router: r, issuer: auth.NewIssuer(cfg)}
}

func (f *fixture) seedUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "x"}
	require.NoError(t, f.db.Create(user).Error)
	token, err := f.issuer.AccessToken(user)
	require.NoError(t, err)
	return user, token
}

func (f *fixture) seedVideo(t *testing.T) *models.Video {
	t.Helper()
	video := &models.Video{Title: "first upload", OwnerID: 1, Published: true}
	require.NoError(t, f.db.Create(video).Error)
	return video
}

func (f *fixture) patchReaction(token, query string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/reactions?"+query, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(w, req)
	return w
}

type toggleResponse struct {
	CurrentState  string `json:"current_state"`
	LikedTotal    int64  `json:"liked_total"`
	DislikedTotal int64  `json:"disliked_total"`
}

func decodeToggle(t *testing.T, w *httptest.ResponseRecorder) toggleResponse {
	t.Helper()
	var out toggleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Error.Kind
}

func TestFirstLikeThenUndoThenDislike(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "ana")
	video := f.seedVideo(t)
	q := fmt.Sprintf("videoId=%d&reaction=", video.ID)

	// Fresh target, reaction=true: liked, totals 1/0.
	w := f.patchReaction(token, q+"true")
	require.Equal(t, http.StatusOK, w.Code)
	res := decodeToggle(t, w)
	assert.Equal(t, "liked", res.CurrentState)
	assert.Equal(t, int64(1), res.LikedTotal)
	assert.Equal(t, int64(0), res.DislikedTotal)

	// Repeat reaction=true: undo, totals 0/0.
	w = f.patchReaction(token, q+"true")
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeToggle(t, w)
	assert.Equal(t, "none", res.CurrentState)
	assert.Equal(t, int64(0), res.LikedTotal)
	assert.Equal(t, int64(0), res.DislikedTotal)

	// Like again, then dislike: flips, one row only.
	w = f.patchReaction(token, q+"true")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.patchReaction(token, q+"false")
	require.Equal(t, http.StatusOK, w.Code)
	res = decodeToggle(t, w)
	assert.Equal(t, "disliked", res.CurrentState)
	assert.Equal(t, int64(0), res.LikedTotal)
	assert.Equal(t, int64(1), res.DislikedTotal)

	var rows int64
	require.NoError(t, f.db.Model(&models.Reaction{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestToggleValidation(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "ana")
	video := f.seedVideo(t)

	// Bad reaction value.
	w := f.patchReaction(token, fmt.Sprintf("videoId=%d&reaction=maybe", video.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REACTION_VALUE", errorKind(t, w))

	// No target at all.
	w = f.patchReaction(token, "reaction=true")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_TARGET_SPECIFIED", errorKind(t, w))

	// Malformed id.
	w = f.patchReaction(token, "videoId=abc&reaction=true")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MALFORMED_ID", errorKind(t, w))
}

func TestToggleOnDeletedTarget(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "ana")

	video := f.seedVideo(t)
	comment := &models.Comment{Body: "gone soon", AuthorID: 1, VideoID: video.ID}
	require.NoError(t, f.db.Create(comment).Error)
	require.NoError(t, f.db.Delete(&models.Comment{}, comment.ID).Error)

	w := f.patchReaction(token, fmt.Sprintf("commentId=%d&reaction=true", comment.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TARGET_NOT_FOUND", errorKind(t, w))
}

func TestToggleRequiresCredential(t *testing.T) {
	f := newFixture(t)
	video := f.seedVideo(t)

	w := f.patchReaction("", fmt.Sprintf("videoId=%d&reaction=true", video.ID))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_CREDENTIAL", errorKind(t, w))

	// Nothing was written.
	var rows int64
	require.NoError(t, f.db.Model(&models.Reaction{}).Count(&rows).Error)
	assert.Equal(t, int64(0), rows)
}

func TestCountsArePublic(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "ana")
	video := f.seedVideo(t)

	w := f.patchReaction(token, fmt.Sprintf("videoId=%d&reaction=true", video.ID))
	require.Equal(t, http.StatusOK, w.Code)

	// No Authorization header on the read.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/reactions/video/%d/counts", video.ID), nil)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		LikedTotal    int64 `json:"liked_total"`
		DislikedTotal int64 `json:"disliked_total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, int64(1), out.LikedTotal)
	assert.Equal(t, int64(0), out.DislikedTotal)
}

func TestCountsForMissingTarget(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reactions/video/9999/counts", nil)
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TARGET_NOT_FOUND", errorKind(t, w))
}

func TestMinePartitionsReactions(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "ana")
	video := f.seedVideo(t)
	tweet := &models.Tweet{Body: "hot take", AuthorID: 1}
	require.NoError(t, f.db.Create(tweet).Error)

	w := f.patchReaction(token, fmt.Sprintf("videoId=%d&reaction=true", video.ID))
	require.Equal(t, http.StatusOK, w.Code)
	w = f.patchReaction(token, fmt.Sprintf("tweetId=%d&reaction=false", tweet.ID))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reactions/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	f.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Liked    []models.Reaction `json:"liked"`
		Disliked []models.Reaction `json:"disliked"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Liked, 1)
	require.Len(t, out.Disliked, 1)
	assert.Equal(t, "video", out.Liked[0].TargetType)
	assert.Equal(t, "tweet", out.Disliked[0].TargetType)
}

func TestPrecedenceWhenMultipleTargetsSupplied(t *testing.T) {
	f := newFixture(t)
	_, token := f.seedUser(t, "ana")
	video := f.seedVideo(t)
	comment := &models.Comment{Body: "nice", AuthorID: 1, VideoID: video.ID}
	require.NoError(t, f.db.Create(comment).Error)

	// Both ids supplied: exactly one target resolves, and it is the comment.
	w := f.patchReaction(token, fmt.Sprintf("commentId=%d&videoId=%d&reaction=true", comment.ID, video.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var out struct {
		TargetType string `json:"target_type"`
		TargetID   int    `json:"target_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "comment", out.TargetType)
	assert.Equal(t, comment.ID, out.TargetID)

	var rows int64
	require.NoError(t, f.db.Model(&models.Reaction{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}
