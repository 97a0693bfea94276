package websocket

import "encoding/json"

// 服务端 -> 客户端。Method 为 "EVENT" 时 Event 有效
type OutgoingMessage struct {
	Method string      `json:"method"`
	Event  string      `json:"event,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// 客户端 -> 服务端
type IncomingMessage struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
}

const MethodEvent = "EVENT"

// Event 构造一条 EVENT 消息
func Event(name string, data interface{}) OutgoingMessage {
	return OutgoingMessage{Method: MethodEvent, Event: name, Data: data}
}

// Reply 构造一条方法回执
func Reply(method string, data interface{}) OutgoingMessage {
	return OutgoingMessage{Method: method, Data: data}
}
