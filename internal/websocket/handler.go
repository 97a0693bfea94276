package websocket

import (
	"net/http"

	"UnoArena/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws  认证在连接建立后通过 AUTH 消息完成
func ServeWS(hub *Hub, dispatcher Dispatcher, auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			utils.Log.Warn("websocket upgrade failed", "remote", c.Request.RemoteAddr, "err", err)
			return
		}

		client := &Client{
			ID:         dispatcher.NextSessionID(),
			Conn:       conn,
			Send:       make(chan OutgoingMessage, sendBuffer),
			Hub:        hub,
			auth:       auth,
			dispatcher: dispatcher,
		}

		hub.join(client)
		utils.Log.Info("connection accepted", "session", client.ID, "remote", c.Request.RemoteAddr)

		go client.writePump()
		go client.readPump()

		client.Reply(MethodWelcome, nil)
	}
}
