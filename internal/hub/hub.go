// Package hub 维护会话事件的 WebSocket 订阅关系。
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"scope-chat-go/pkg/log"
)

// Event 是推送给订阅者的会话事件。
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
}

// Hub 按会话 ID 维护活跃的 WebSocket 连接。
// 事件只推送给当前在线的订阅者，不做离线缓冲。
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]bool
}

// New 创建一个空的 Hub。
func New() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]bool)}
}

// Register 把一个连接登记到指定会话下。
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.conns[sessionID][conn] = true
}

// Unregister 移除一个连接。
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.conns[sessionID]; set != nil {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.conns, sessionID)
		}
	}
}

// Publish 向指定会话的所有在线连接推送一个事件。
// gorilla 的连接同一时刻只允许一个写入者，摘要发送与估算完成
// 可能并发触达同一会话，因此写入期间持有写锁串行化。
// 写失败的连接直接放弃，由读循环负责清理。
func (h *Hub) Publish(sessionID, eventType string) {
	event := Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化会话事件失败: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[sessionID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warnf("推送会话事件失败: %v", err)
		}
	}
}

// SubscriberCount 返回指定会话当前的在线连接数。
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[sessionID])
}
