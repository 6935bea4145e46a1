package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"namaste-icd-mapper/internal/auth"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/utils"
)

// RequireRole admits requests carrying a valid bearer token with role.
// A nil manager leaves the group open.
func RequireRole(tokens *auth.TokenManager, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			utils.RespondWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication token is required", nil)
			c.Abort()
			return
		}

		claims, err := tokens.Validate(tokenString)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token", nil)
			c.Abort()
			return
		}
		if claims.Role != role {
			logger.Warn("Forbidden admin request",
				"request_id", GetRequestID(c),
				"subject", claims.Subject,
				"role", claims.Role)
			utils.RespondWithError(c, http.StatusForbidden, "forbidden", "Insufficient permissions", nil)
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Next()
	}
}
