package security

import (
	"errors"
	"strings"

	"smallbiznis-points/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"
)

// Authenticate resolves the bearer token into a caller address. Requests
// without an Authorization header continue anonymously; queries need no caller
// and gated operations reject an empty caller themselves.
func Authenticate(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			_ = c.Error(errutil.Unauthorized("Invalid Authorization header format", nil))
			c.Abort()
			return
		}

		caller, err := verifier.Verify(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrExpired) {
				zap.L().Info("token validation failed", zap.Error(err))
			} else {
				zap.L().Warn("token validation failed", zap.Error(err))
			}
			_ = c.Error(errutil.Unauthorized("Invalid token", err))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}
