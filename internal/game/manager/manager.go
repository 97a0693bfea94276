package manager

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"UnoArena/internal/game/engine"
	"UnoArena/internal/game/table"
	"UnoArena/internal/lobby"
	"UnoArena/internal/utils"
)

const directoryTimeout = 2 * time.Second

// Directory 对外发布房间摘要和玩家所在房间（Redis / 内存），失败只记日志
type Directory interface {
	PublishMatch(ctx context.Context, s lobby.MatchSummary)
	TrackPlayer(ctx context.Context, player uint64, matchID int)
	UntrackPlayer(ctx context.Context, player uint64)
	RemoveMatch(ctx context.Context, id int)
}

// GameManager 管理所有对局：matchID -> engine，会话 -> 所在房间
type GameManager struct {
	mu           sync.RWMutex
	engines      map[int]*engine.Engine
	playerToRoom map[uint64]int
	hub          engine.Broadcaster
	directory    Directory
	opts         engine.Options

	nextMatchID   int
	nextSessionID atomic.Uint64
}

func NewGameManager(hub engine.Broadcaster, directory Directory, opts engine.Options) *GameManager {
	return &GameManager{
		engines:      make(map[int]*engine.Engine),
		playerToRoom: make(map[uint64]int),
		hub:          hub,
		directory:    directory,
		opts:         opts,
	}
}

// NextSessionID 会话 ID 由注册表统一分配
func (m *GameManager) NextSessionID() uint64 {
	return m.nextSessionID.Add(1)
}

// CreateMatch 创建空房间并启动它的动作循环
func (m *GameManager) CreateMatch(name string) *engine.Engine {
	m.mu.Lock()
	id := m.nextMatchID
	m.nextMatchID++
	eng := engine.NewEngine(table.New(id, name), m.hub, m.opts)
	m.engines[id] = eng
	m.mu.Unlock()

	go eng.Run()
	utils.Log.Info("match created", "match", id, "name", name)
	m.publish(eng)
	return eng
}

// OpenMatch 供大厅 HTTP 接口创建房间
func (m *GameManager) OpenMatch(name string) lobby.MatchSummary {
	return toLobby(m.CreateMatch(name).Summary())
}

func (m *GameManager) Match(id int) (*engine.Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	eng, ok := m.engines[id]
	return eng, ok
}

// CurrentMatch 会话当前所在房间
func (m *GameManager) CurrentMatch(player uint64) (*engine.Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.playerToRoom[player]
	if !ok {
		return nil, false
	}
	eng, ok := m.engines[id]
	return eng, ok
}

func (m *GameManager) ListMatches() []engine.Summary {
	m.mu.RLock()
	out := make([]engine.Summary, 0, len(m.engines))
	for _, eng := range m.engines {
		out = append(out, eng.Summary())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown 停止所有动作循环，并把房间从目录中撤下
func (m *GameManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, eng := range m.engines {
		eng.Stop()
		if m.directory != nil {
			ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
			m.directory.RemoveMatch(ctx, id)
			cancel()
		}
	}
}

func (m *GameManager) track(player uint64, matchID int) {
	m.mu.Lock()
	m.playerToRoom[player] = matchID
	m.mu.Unlock()

	if m.directory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
		defer cancel()
		m.directory.TrackPlayer(ctx, player, matchID)
	}
}

func (m *GameManager) untrack(player uint64) {
	m.mu.Lock()
	delete(m.playerToRoom, player)
	m.mu.Unlock()

	if m.directory != nil {
		ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
		defer cancel()
		m.directory.UntrackPlayer(ctx, player)
	}
}

func (m *GameManager) publish(eng *engine.Engine) {
	if m.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), directoryTimeout)
	defer cancel()
	m.directory.PublishMatch(ctx, toLobby(eng.Summary()))
}

func toLobby(s engine.Summary) lobby.MatchSummary {
	return lobby.MatchSummary{
		ID:        s.ID,
		Name:      s.Name,
		Running:   s.Running,
		Players:   s.Players,
		CreatedAt: s.CreatedAt,
	}
}
