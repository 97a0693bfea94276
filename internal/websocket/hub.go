package websocket

import (
	"sync"

	"UnoArena/internal/utils"
)

type Hub struct {
	clients    map[uint64]*Client // session id -> client
	register   chan *Client
	unregister chan *Client
	outbox     chan delivery
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

// 广播与单发共用一个队列，避免互相越序
type delivery struct {
	IDs     []uint64
	Message OutgoingMessage
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbox:     make(chan delivery, 128),
		quit:       make(chan struct{}),
	}
}

// Run 单个 goroutine 负责所有投递，保证同一会话的消息按发送顺序到达
func (h *Hub) Run() {
	utils.Log.Info("hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			n := len(h.clients)
			h.mu.Unlock()
			utils.Log.Debug("hub register", "session", c.ID, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.ID]; ok && cur == c {
				delete(h.clients, c.ID)
				close(c.Send)
				utils.Log.Debug("hub unregister", "session", c.ID, "clients", len(h.clients))
			}
			h.mu.Unlock()

		case d := <-h.outbox:
			for _, id := range d.IDs {
				h.deliver(id, d.Message)
			}

		case <-h.quit:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// deliver 不阻塞 hub：发送队列满的客户端直接断开，由传输层当作掉线处理
func (h *Hub) deliver(id uint64, msg OutgoingMessage) {
	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		utils.Log.Debug("drop message for unknown session", "session", id, "method", msg.Method, "event", msg.Event)
		return
	}
	if client.kicked.Load() {
		return
	}
	select {
	case client.Send <- msg:
	default:
		utils.Log.Warn("send queue full, disconnecting", "session", id)
		// 关闭帧写入可能阻塞，不能卡住 hub
		go client.Kick("send queue full")
	}
}

// Broadcast to multiple players
func (h *Hub) BroadcastToPlayers(ids []uint64, msg OutgoingMessage) {
	select {
	case h.outbox <- delivery{IDs: ids, Message: msg}:
	case <-h.quit:
	}
}

// Send to a single player (safe concurrent)
func (h *Hub) SendToPlayer(id uint64, msg OutgoingMessage) {
	select {
	case h.outbox <- delivery{IDs: []uint64{id}, Message: msg}:
	case <-h.quit:
	}
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

func (h *Hub) join(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}
