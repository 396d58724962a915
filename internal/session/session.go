// Package session replaces real authentication with an opaque per-browser
// identity: the first visit mints a UUID, signs it into a JWT with
// STORAGE_SECRET, and sets it as a cookie. Every later request's user ID is
// just whatever that cookie says — there is no login, no password, no
// identity provider. The JWT signature only prevents a client from editing
// their own cookie into another user's ID by hand.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const cookieName = "cobblepod_session"

// claims is the JWT payload: just enough to carry an opaque user ID with
// an expiry, nothing identity-provider-shaped.
type claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Manager mints and validates session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager builds a Manager that signs cookies with secret and issues
// them with the given lifetime.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// Middleware ensures every request carries a valid session cookie, minting
// a fresh one for first-time visitors, and stores the resolved user ID in
// the gin context under "user_id".
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := m.fromCookie(c.Request)
		if err != nil {
			userID = uuid.New().String()
			token, signErr := m.sign(userID)
			if signErr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
				c.Abort()
				return
			}
			c.SetCookie(cookieName, token, int(m.ttl.Seconds()), "/", "", false, true)
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

func (m *Manager) sign(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	return token.SignedString(m.secret)
}

func (m *Manager) fromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return "", fmt.Errorf("no session cookie: %w", err)
	}

	parsed, err := jwt.ParseWithClaims(cookie.Value, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.UserID == "" {
		return "", fmt.Errorf("malformed session claims")
	}
	return c.UserID, nil
}

// UserID is a helper to read the resolved user ID from the gin context,
// the same GetUserID-after-middleware idiom the reference Auth0 middleware
// used.
func UserID(c *gin.Context) (string, error) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("no session on request")
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid session user id")
	}
	return id, nil
}
