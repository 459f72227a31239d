package middleware

import (
	"strconv"
	"strings"

	"whatsjuju-chat/backend/pkg/errors"
	"whatsjuju-chat/backend/pkg/jwt"
	"whatsjuju-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user id
const UserIDKey = "userId"

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(token string) (*jwt.JWTClaims, error)
}

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context.
// The token is read from the Authorization header, or from the "token" query parameter
// for clients that cannot set headers (browser WebSockets).
func JWTAuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimPrefix(token, "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Login necessário"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.FromGin(c).Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set(UserIDKey, claims.UserID)
		logger.Attach(c, logger.FromGin(c).WithUserID(strconv.FormatUint(uint64(claims.UserID), 10)))

		c.Next()
	}
}

// CurrentUserID returns the authenticated user id set by JWTAuthMiddleware
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
