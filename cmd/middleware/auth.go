package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"eventdesk/internal/auth"
	"eventdesk/internal/dto"
)

const (
	UserIDKey  = "user_id"
	IsAdminKey = "is_admin"
)

// Auth extracts and verifies the bearer token, storing the caller identity
// on the request context. Requests without a valid token are rejected.
func Auth(secret string) ginext.HandlerFunc {
	return func(c *ginext.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" {
			dto.UnauthorizedError(c)
			return
		}

		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			dto.UnauthorizedError(c)
			return
		}

		uid, err := uuid.Parse(claims.UserID)
		if err != nil {
			dto.UnauthorizedError(c)
			return
		}

		c.Set(UserIDKey, uid)
		c.Set(IsAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// RequireAdmin gates admin-only routes. Must run after Auth.
func RequireAdmin() ginext.HandlerFunc {
	return func(c *ginext.Context) {
		if isAdmin, ok := c.Get(IsAdminKey); !ok || isAdmin != true {
			dto.ForbiddenError(c)
			return
		}
		c.Next()
	}
}

// CallerID returns the verified user id set by Auth.
func CallerID(c *ginext.Context) (uuid.UUID, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	uid, ok := v.(uuid.UUID)
	return uid, ok
}
