package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/playback/internal/auth"
	"github.com/aura-webinar/playback/pkg/response"
)

const (
	// ContextSubject is the key for the token subject in gin context.
	ContextSubject = "subject"
	// ContextRole is the key for the caller role in gin context.
	ContextRole = "role"
)

// JWT returns a middleware that validates the bearer token and sets the caller in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		claims, err := jwtService.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}
