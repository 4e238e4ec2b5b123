package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/services"
)

// TokenValidator validates access tokens
type TokenValidator interface {
	ValidateAccessToken(token string) (*services.Claims, error)
}

// RequireAuth checks the Bearer access token and stores the caller in the context
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := validator.ValidateAccessToken(token)
		if err != nil {
			apierrors.Unauthorized(c, "Invalid or expired access token")
			c.Abort()
			return
		}

		// Store user in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Set(constants.ContextKeyUsername, claims.Username)
		c.Next()
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, constants.AuthorizationScheme) {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}
