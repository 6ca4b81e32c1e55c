package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scope-chat-go/pkg/token"
)

// CtxAdminUser 是管理员用户名的上下文键。
const CtxAdminUser = "adminUser"

// AdminAuthMiddleware 创建一个 Gin 中间件，只放行携带 admin 类型令牌的请求。
func AdminAuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := verifyBearer(c, jwtManager)
		if !ok {
			return
		}

		if claims.Kind != token.KindAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}

		c.Set(CtxAdminUser, claims.Username)
		c.Next()
	}
}
