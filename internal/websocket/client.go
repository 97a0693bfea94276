package websocket

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"UnoArena/internal/utils"

	"github.com/gorilla/websocket"
)

type Client struct {
	ID   uint64
	Conn *websocket.Conn
	Send chan OutgoingMessage
	Hub  *Hub

	username   string
	state      sessionState
	auth       Authenticator
	dispatcher Dispatcher
	kicked     atomic.Bool
}

const (
	writeWait      = 10 * time.Second    // 单次写超时
	pongWait       = 60 * time.Second    // 读超时
	pingPeriod     = (pongWait * 9) / 10 // 心跳发送周期
	maxMessageSize = 1024 * 4            // 最大4KB
	sendBuffer     = 64
)

func (c *Client) SessionID() uint64 { return c.ID }

func (c *Client) Username() string { return c.username }

// Reply 经由 hub 发送，和对局事件共用同一条有序队列
func (c *Client) Reply(method string, data interface{}) {
	c.Hub.SendToPlayer(c.ID, Reply(method, data))
}

// Kick 立即断开会话；读协程退出时会触发离开对局
func (c *Client) Kick(reason string) {
	if !c.kicked.CompareAndSwap(false, true) {
		return
	}
	utils.Log.Warn("kick client", "session", c.ID, "reason", reason)
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(writeWait),
	)
	_ = c.Conn.Close()
}

// 写协程
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod) // 心跳
	defer func() {
		ticker.Stop()
		c.Hub.leave(c)
		_ = c.Conn.Close()
	}()

	for {
		select {

		// 有消息待发
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭Send，通知前端
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}

		// 定时发送 ping 维持连接健康
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// 读协程：同一会话的消息在这里串行处理
func (c *Client) readPump() {
	defer func() {
		if c.state == stateAuthenticated {
			c.dispatcher.Disconnect(c)
		}
		c.Hub.leave(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil || c.kicked.Load() {
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.Kick("Invalid message")
			return
		}
		if msg.Method == "" {
			c.Kick("Missing key 'method'")
			return
		}

		c.handle(msg)
		if c.kicked.Load() {
			return
		}
	}
}
