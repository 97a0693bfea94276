package middleware

import (
	"net/http"
	"strings"

	"UnoArena/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	CtxSubject  = "subject"
	CtxUsername = "username"
)

// JwtAuthMiddleware 校验 Authorization: Bearer <jwt>，把身份写入 gin.Context
func JwtAuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := issuer.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(CtxSubject, claims.Subject)
		c.Set(CtxUsername, claims.Username)
		c.Next()
	}
}
