package middleware

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
)

// AdminChecker decides whether a user holds the admin role
type AdminChecker interface {
	IsAdmin(userID uint64) bool
}

// RequireAdmin rejects callers that are not the admin. It must run after RequireAuth.
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		if !checker.IsAdmin(userID) {
			apierrors.Forbidden(c, "Only the administrator can perform this action")
			c.Abort()
			return
		}

		c.Next()
	}
}
