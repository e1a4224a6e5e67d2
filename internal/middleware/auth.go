package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mmutisya/shuledesk/internal/auditctx"
	iauth "github.com/mmutisya/shuledesk/internal/auth"
	"github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxEmailKey  = "userEmail"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		// Propagate identity into request context
		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.Email != "" {
			c.Set(CtxEmailKey, claims.Email)
		}

		if c.Request != nil {
			ctx := auditctx.WithActor(c.Request.Context(), auditctx.Actor{
				UserID:    claims.UserID,
				Username:  claims.Email,
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}
