package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/models"
)

// Verifier resolves a raw bearer token to the user it names. It is
// read-only: no token state is mutated and token contents are never logged.
type Verifier struct {
	cfg Config
	db  *gorm.DB
}

func NewVerifier(cfg Config, db *gorm.DB) *Verifier {
	return &Verifier{cfg: cfg, db: db}
}

// Verify checks signature and expiry of an access token, then loads the
// subject. Expired tokens get their own error kind so the client can
// attempt a refresh instead of forcing a re-login.
func (v *Verifier) Verify(ctx context.Context, raw string) (*models.User, error) {
	if raw == "" {
		return nil, apperr.MissingCredential("access token required")
	}

	claims, err := parseToken(raw, v.cfg.AccessSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.CredentialExpired()
		}
		return nil, apperr.InvalidCredential(err)
	}

	var user models.User
	if err := v.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.UnknownSubject()
		}
		return nil, apperr.Unavailable(err)
	}

	user = user.Sanitized()
	return &user, nil
}

// VerifyRefresh validates a refresh token and confirms it is the one
// currently on record for the subject. Rotation invalidates older tokens:
// their hash no longer matches.
func (v *Verifier) VerifyRefresh(ctx context.Context, raw string) (*models.User, error) {
	if raw == "" {
		return nil, apperr.MissingCredential("refresh token required")
	}

	claims, err := parseToken(raw, v.cfg.RefreshSecret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.CredentialExpired()
		}
		return nil, apperr.InvalidCredential(err)
	}

	var user models.User
	if err := v.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.UnknownSubject()
		}
		return nil, apperr.Unavailable(err)
	}

	if user.RefreshTokenHash == "" || user.RefreshTokenHash != HashToken(raw) {
		return nil, apperr.InvalidCredential(errors.New("refresh token superseded"))
	}

	return &user, nil
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
