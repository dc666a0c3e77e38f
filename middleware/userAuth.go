package middleware

import (
	"net/http"
	"strings"

	"tutorbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserID is the gin context key holding the authenticated buyer.
const ContextUserID = "userID"

// JWTAuthUserMiddleware accepts a Bearer token issued by the identity
// service and stores its subject under ContextUserID.
func JWTAuthUserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c)
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			abortUnauthorized(c)
			return
		}

		userID, err := utils.ExtractIDFromToken(tokenString)
		if err != nil {
			zap.L().Debug("Rejected token", zap.String("ip", getClientIP(c)), zap.Error(err))
			abortUnauthorized(c)
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// UserID returns the authenticated buyer set by JWTAuthUserMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse{
		Message: "Insufficient authorization",
		Code:    "unauthorized",
	})
}
