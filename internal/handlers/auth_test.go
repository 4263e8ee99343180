package handlers

import (
	"bytes"
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

func newAuthFixture(t *testing.T) (*gorm.DB, *gin.Engine) {
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
	require.NoError(t, db.AutoMigrate(&models.User{}))

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
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	protected := api.Group("")
	protected.Use(guard)
	protected.GET("/me", h.Auth.GetMe)
	protected.POST("/auth/logout", h.Auth.Logout)

	return db, r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) models.AuthResponse {
	t.Helper()
	var out models.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	_, r := newAuthFixture(t)

	w := postJSON(t, r, "/api/v1/auth/register", models.RegisterRequest{
		Username: "ana", Email: "ana@example.com", Password: "sup3rsecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	reg := decodeAuth(t, w)
	assert.NotEmpty(t, reg.AccessToken)
	assert.NotEmpty(t, reg.RefreshToken)

	w = postJSON(t, r, "/api/v1/auth/login", models.LoginRequest{
		Email: "ana@example.com", Password: "sup3rsecret",
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
	login := decodeAuth(t, w)

	// The minted access token works against a protected route.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "ana", me.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	_, r := newAuthFixture(t)

	w := postJSON(t, r, "/api/v1/auth/register", models.RegisterRequest{
		Username: "ana", Email: "ana@example.com", Password: "sup3rsecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, r, "/api/v1/auth/login", models.LoginRequest{
		Email: "ana@example.com", Password: "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	_, r := newAuthFixture(t)

	w := postJSON(t, r, "/api/v1/auth/register", models.RegisterRequest{
		Username: "ana", Email: "ana@example.com", Password: "sup3rsecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	first := decodeAuth(t, w)

	// Exchange succeeds and returns a rotated pair.
	w = postJSON(t, r, "/api/v1/auth/refresh", models.RefreshRequest{RefreshToken: first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeAuth(t, w)
	assert.NotEmpty(t, second.AccessToken)
	assert.NotEmpty(t, second.RefreshToken)

	// The spent refresh token is single-use: replaying it fails.
	w = postJSON(t, r, "/api/v1/auth/refresh", models.RefreshRequest{RefreshToken: first.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The rotated one works.
	w = postJSON(t, r, "/api/v1/auth/refresh", models.RefreshRequest{RefreshToken: second.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutClearsRefreshToken(t *testing.T) {
	_, r := newAuthFixture(t)

	w := postJSON(t, r, "/api/v1/auth/register", models.RegisterRequest{
		Username: "ana", Email: "ana@example.com", Password: "sup3rsecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	session := decodeAuth(t, w)

	w = postJSON(t, r, "/api/v1/auth/logout", gin.H{}, session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/api/v1/auth/refresh", models.RefreshRequest{RefreshToken: session.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
