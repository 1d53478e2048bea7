package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/strumline/guitar-crm-api/internal/models"
	appErrors "github.com/strumline/guitar-crm-api/pkg/errors"
	"github.com/strumline/guitar-crm-api/pkg/response"
)

// Role names accepted by RBAC. "SELF" additionally admits a caller whose ID
// matches the :id route parameter.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	AllowSelf   = "SELF"
)

// RBAC gates a route on the caller's role flags. A multi-role user passes
// when any of their flags is in the allowed set. Callers with no flags at
// all are always rejected here; row filtering below this layer uses the
// impossible-match predicate instead.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		allowSelf := false
		for _, role := range allowed {
			switch role {
			case AllowSelf:
				allowSelf = true
			case RoleAdmin:
				if claims.IsAdmin {
					c.Next()
					return
				}
			case RoleTeacher:
				if claims.IsTeacher {
					c.Next()
					return
				}
			case RoleStudent:
				if claims.IsStudent {
					c.Next()
					return
				}
			}
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
