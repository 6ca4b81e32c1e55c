package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"scope-chat-go/internal/hub"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// WSHandler 负责处理会话事件的 WebSocket 订阅。
type WSHandler struct {
	eventHub   *hub.Hub
	jwtManager *token.JWTManager
}

// NewWSHandler 创建一个新的 WSHandler 实例。
func NewWSHandler(eventHub *hub.Hub, jwtManager *token.JWTManager) *WSHandler {
	return &WSHandler{eventHub: eventHub, jwtManager: jwtManager}
}

// Handle 处理 GET /ws/sessions/:token。
// 前端用会话令牌订阅自己的会话，估算完成与摘要发送事件会被推送过来。
func (h *WSHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil || claims.Kind != token.KindSession || claims.SessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}
	sessionID := claims.SessionID

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	h.eventHub.Register(sessionID, conn)
	defer h.eventHub.Unregister(sessionID, conn)

	log.Infof("会话事件订阅已建立, session=%s", sessionID)

	// 读循环只用于感知连接关闭，收到的内容一律忽略
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Infof("会话事件订阅已断开, session=%s", sessionID)
			return
		}
	}
}
