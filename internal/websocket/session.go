package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	MethodWelcome = "WELCOME"
	MethodAuth    = "AUTH"
)

// 会话状态机：未认证时只接受 AUTH
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
)

// Session 游戏层看到的会话
type Session interface {
	SessionID() uint64
	Username() string
	Reply(method string, data interface{})
	Kick(reason string)
}

// Dispatcher 已认证会话的消息交给游戏层（MatchRegistry）
type Dispatcher interface {
	NextSessionID() uint64
	HandleMessage(s Session, msg IncomingMessage)
	Disconnect(s Session)
}

// Authenticator 校验 AUTH 携带的 token，返回用户名
type Authenticator interface {
	Authenticate(token string) (string, error)
}

func (c *Client) handle(msg IncomingMessage) {
	switch c.state {
	case stateUnauthenticated:
		username, err := c.authenticate(msg)
		if err != nil {
			c.Kick(err.Error())
			return
		}
		c.username = username
		c.state = stateAuthenticated
		c.Reply(MethodAuth, nil)

	case stateAuthenticated:
		c.dispatcher.HandleMessage(c, msg)
	}
}

func (c *Client) authenticate(msg IncomingMessage) (string, error) {
	if msg.Method != MethodAuth {
		return "", errors.New("Awaiting authentication")
	}
	var req struct {
		Token *string `json:"token"`
	}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return "", errors.New("Invalid 'token' type")
		}
	}
	if req.Token == nil {
		return "", errors.New("Missing key 'token'")
	}
	username, err := c.auth.Authenticate(*req.Token)
	if err != nil {
		return "", fmt.Errorf("Invalid token: %w", err)
	}
	return username, nil
}
