// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"scope-chat-go/pkg/token"
)

// 上下文键
const (
	CtxSessionID = "sessionId"
	CtxClaims    = "claims"
)

// SessionAuthMiddleware 创建一个 Gin 中间件，用于会话令牌认证。
// 它从请求头中提取令牌，校验其为 session 类型，
// 并把绑定的会话 ID 存入 Gin 的上下文中。
func SessionAuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := verifyBearer(c, jwtManager)
		if !ok {
			return
		}

		if claims.Kind != token.KindSession || claims.SessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is not a session token"})
			return
		}

		c.Set(CtxSessionID, claims.SessionID)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}

// verifyBearer 提取并校验 Authorization 头中的 Bearer 令牌。
// 失败时已写出 401 响应并中止请求链。
func verifyBearer(c *gin.Context, jwtManager *token.JWTManager) (*token.CustomClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
		return nil, false
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
		return nil, false
	}
	tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return nil, false
	}
	return claims, true
}
