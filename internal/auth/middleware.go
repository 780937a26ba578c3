package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/patient-care-portal/internal/audit"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxRoles    = "roles"
)

type Middleware struct {
	service Service
	enabled bool
}

// NewMiddleware returns the role guard. When enabled is false every request
// passes through as the anonymous actor.
func NewMiddleware(service Service, enabled bool) *Middleware {
	return &Middleware{
		service: service,
		enabled: enabled,
	}
}

// RequireRoles rejects requests without a valid bearer token and, when roles
// are given, those whose token carries none of them.
func (m *Middleware) RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.enabled {
			c.Set(ctxUserID, audit.Anonymous)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := m.service.ValidateToken(c.Request.Context(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if len(requiredRoles) > 0 && !hasAnyRole(claims.Roles, requiredRoles) {
			abort(c, http.StatusForbidden, "forbidden", "insufficient permissions")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxRoles, claims.Roles)
		c.Request = c.Request.WithContext(audit.WithActor(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

func hasAnyRole(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func abort(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"kind":    kind,
		"message": message,
	})
}

// GetUserID returns the authenticated user ID, or "" when none was set.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func GetUserRoles(c *gin.Context) []string {
	return c.GetStringSlice(ctxRoles)
}
