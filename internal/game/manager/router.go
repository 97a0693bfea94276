package manager

import (
	"encoding/json"
	"errors"
	"fmt"

	"UnoArena/internal/game/engine"
	"UnoArena/internal/game/table"
	"UnoArena/internal/utils"
	"UnoArena/internal/websocket"
)

const (
	MethodListMatches   = "LIST_MATCHES"
	MethodJoinMatch     = "JOIN_MATCH"
	MethodLeaveMatch    = "LEAVE_MATCH"
	MethodLoadMatchData = "LOAD_MATCH_DATA"
	MethodStartMatch    = "START_MATCH"
	MethodRenameMatch   = "RENAME_MATCH"
	MethodPlayCards     = "PLAY_CARDS"
	MethodTakeCard      = "TAKE_CARD"
	MethodSkip          = "SKIP"
)

var (
	ErrUnknownMethod  = errors.New("unknown method")
	ErrMalformedData  = errors.New("invalid message data")
	ErrNotInMatch     = errors.New("Not in a match")
	ErrAlreadyInMatch = errors.New("already in a match")
	ErrUnknownMatch   = errors.New("Invalid match ID")
)

var _ websocket.Dispatcher = (*GameManager)(nil)

func missingKey(key string) error {
	return fmt.Errorf("%w: missing key '%s'", ErrMalformedData, key)
}

// HandleMessage 统一入口（来自已认证会话的读协程）。任何错误都断开该会话。
func (m *GameManager) HandleMessage(s websocket.Session, msg websocket.IncomingMessage) {
	if err := m.dispatch(s, msg); err != nil {
		s.Kick(err.Error())
	}
}

// Disconnect 掉线等同离开房间
func (m *GameManager) Disconnect(s websocket.Session) {
	eng, ok := m.CurrentMatch(s.SessionID())
	if !ok {
		return
	}
	p := table.Player{ID: s.SessionID(), Username: s.Username()}
	if res := eng.Submit(p, engine.Leave{}); res.Err != nil {
		utils.Log.Error("leave on disconnect failed", "session", p.ID, "match", eng.ID(), "err", res.Err)
	}
	m.untrack(p.ID)
	m.publish(eng)
}

func (m *GameManager) dispatch(s websocket.Session, msg websocket.IncomingMessage) error {
	p := table.Player{ID: s.SessionID(), Username: s.Username()}

	switch msg.Method {
	case MethodListMatches:
		matches := make([]map[string]any, 0)
		for _, sum := range m.ListMatches() {
			matches = append(matches, map[string]any{"ID": sum.ID, "name": sum.Name})
		}
		s.Reply(MethodListMatches, map[string]any{"matches": matches})
		return nil

	case MethodJoinMatch:
		return m.join(s, p, msg.Data)
	}

	cmd, err := parseMatchCommand(msg)
	if err != nil {
		return err
	}
	eng, ok := m.CurrentMatch(p.ID)
	if !ok {
		return ErrNotInMatch
	}

	res := eng.Submit(p, cmd)
	if res.Err != nil {
		return res.Err
	}

	switch cmd.(type) {
	case engine.Leave:
		m.untrack(p.ID)
		s.Reply(msg.Method, nil)
	case engine.LoadData:
		s.Reply(msg.Method, map[string]any{"match": res.Data})
	case engine.PlayCards:
		s.Reply(msg.Method, map[string]any{"valid": res.Valid})
	default:
		s.Reply(msg.Method, nil)
	}
	m.publish(eng)
	return nil
}

func (m *GameManager) join(s websocket.Session, p table.Player, data json.RawMessage) error {
	var req struct {
		MatchID *int `json:"matchID"`
	}
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.MatchID == nil {
		return missingKey("matchID")
	}
	if _, ok := m.CurrentMatch(p.ID); ok {
		return ErrAlreadyInMatch
	}
	eng, ok := m.Match(*req.MatchID)
	if !ok {
		return ErrUnknownMatch
	}

	res := eng.Submit(p, engine.Join{})
	if res.Err != nil {
		return res.Err
	}
	m.track(p.ID, eng.ID())
	s.Reply(MethodJoinMatch, map[string]any{"turnNumber": res.Seat})
	m.publish(eng)
	return nil
}

// parseMatchCommand 把房间内的方法翻译成引擎命令
func parseMatchCommand(msg websocket.IncomingMessage) (engine.Command, error) {
	switch msg.Method {
	case MethodLeaveMatch:
		return engine.Leave{}, nil
	case MethodLoadMatchData:
		return engine.LoadData{}, nil
	case MethodStartMatch:
		return engine.Start{}, nil
	case MethodTakeCard:
		return engine.TakeCard{}, nil
	case MethodSkip:
		return engine.Skip{}, nil

	case MethodRenameMatch:
		var req struct {
			Name *string `json:"name"`
		}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		if req.Name == nil {
			return nil, missingKey("name")
		}
		return engine.Rename{Name: *req.Name}, nil

	case MethodPlayCards:
		var req struct {
			Cards *[]int `json:"cards"`
		}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		if req.Cards == nil {
			return nil, missingKey("cards")
		}
		return engine.PlayCards{Indices: *req.Cards}, nil
	}
	return nil, fmt.Errorf("%w '%s'", ErrUnknownMethod, msg.Method)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	return nil
}
