package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/lifecycle"
	appErrors "github.com/noah-isme/curriculum-api/pkg/errors"
	"github.com/noah-isme/curriculum-api/pkg/response"
)

// RequireAction admits the request only when the caller's role may perform action.
func RequireAction(policy lifecycle.RolePolicy, action lifecycle.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}
		if !policy.Allows(identity.Role, action) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(identity.Role)+" may not perform "+string(action)))
			c.Abort()
			return
		}
		c.Next()
	}
}
