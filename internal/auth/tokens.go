package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
)

// Config is passed explicitly to anything that mints or verifies tokens;
// there is deliberately no package-level secret.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims carried by both access and refresh tokens.
type Claims struct {
	UserID int `json:"user_id"`
	jwt.RegisteredClaims
}

// Issuer mints access/refresh token pairs.
type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

func (i *Issuer) mint(user *models.User, secret []byte, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			// jti makes every mint unique, so rotating twice within the
			// same second still invalidates the earlier token.
			ID: uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// AccessToken mints a short-lived bearer credential.
func (i *Issuer) AccessToken(user *models.User) (string, error) {
	return i.mint(user, i.cfg.AccessSecret, i.cfg.AccessTTL)
}

// RefreshToken mints a long-lived refresh secret. Only its hash is stored
// server-side; presenting a token whose hash no longer matches the stored
// one (because a rotation happened) fails the exchange.
func (i *Issuer) RefreshToken(user *models.User) (string, error) {
	return i.mint(user, i.cfg.RefreshSecret, i.cfg.RefreshTTL)
}

// HashToken is how refresh tokens are stored at rest. SHA-256 rather than
// bcrypt because tokens are high-entropy and longer than bcrypt's input
// limit.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
