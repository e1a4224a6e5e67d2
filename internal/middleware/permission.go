package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mmutisya/shuledesk/internal/permissions"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/metrics"
	"github.com/mmutisya/shuledesk/pkg/response"
)

// RequireCapability checks that the authenticated user's membership in the
// org named by the :id route parameter grants the capability. Non-members
// and members without the grant both get the same opaque 403.
func RequireCapability(checker *permissions.Checker, capabilityID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxUserIDKey)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}
		userID, _ := v.(string)

		orgID := c.Param("id")
		if orgID == "" {
			response.Error(c, errors.ErrBadRequest)
			c.Abort()
			return
		}

		allowed, err := checker.Check(c.Request.Context(), userID, orgID, capabilityID)
		if err != nil {
			metrics.CapabilityChecks.WithLabelValues(capabilityID, "error").Inc()
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": errors.ErrInternalServer.Code, "message": "capability check failed"}})
			return
		}
		if !allowed {
			metrics.CapabilityChecks.WithLabelValues(capabilityID, "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.CapabilityChecks.WithLabelValues(capabilityID, "allowed").Inc()
		c.Next()
	}
}
