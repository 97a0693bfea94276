package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"UnoArena/internal/game/card"
	"UnoArena/internal/game/dealer"
	"UnoArena/internal/game/rules"
	"UnoArena/internal/game/table"
	"UnoArena/internal/utils"
	"UnoArena/internal/websocket"
)

const (
	EventAddPlayer      = "ADD_PLAYER"
	EventRemovePlayer   = "REMOVE_PLAYER"
	EventStartMatch     = "START_MATCH"
	EventPushStack      = "PUSH_STACK"
	EventPromote        = "PROMOTE"
	EventAddCardsToHand = "ADD_CARDS_TO_HAND"
	EventSetTurn        = "SET_TURN"
)

const maxNameLength = 64

// Broadcaster 事件出口（websocket.Hub 实现）。投递失败由传输层处理，不影响对局状态。
type Broadcaster interface {
	BroadcastToPlayers(ids []uint64, msg websocket.OutgoingMessage)
	SendToPlayer(id uint64, msg websocket.OutgoingMessage)
}

type Options struct {
	HandSize      int
	MaxPlayers    int
	NumericOpener bool // 开局桌面牌只从数字牌中抽
}

func DefaultOptions() Options {
	return Options{HandSize: 6, MaxPlayers: 10}
}

// ---------------------
//   ACTION DEFINITION
// ---------------------

type Action struct {
	Player  table.Player
	Command Command
	reply   chan Result
}

// Result 一次动作的结果。Err 非空表示会话级致命错误；
// Valid 只对 PlayCards 有意义，false 为合法请求但出牌不成立。
type Result struct {
	Seat  int
	Valid bool
	Data  *MatchData
	Err   error
}

// Summary 大厅列表用的公开信息
type Summary struct {
	ID        int       `json:"ID"`
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	Players   int       `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}

// MatchData LOAD_MATCH_DATA 回执
type MatchData struct {
	ID       int                  `json:"ID"`
	Name     string               `json:"name"`
	IsMaster bool                 `json:"isMaster"`
	Players  map[int]table.Player `json:"players"`
}

// ---------------------
//       ENGINE
// ---------------------

// Engine 单局状态机。所有状态只在 Run 的 goroutine 中修改，一次处理一个动作。
type Engine struct {
	Table  *table.Table
	Dealer *dealer.Dealer
	Hub    Broadcaster

	opts       Options
	actionChan chan Action
	quit       chan struct{}
	stopOnce   sync.Once
	summary    atomic.Pointer[Summary]
}

func NewEngine(t *table.Table, hub Broadcaster, opts Options) *Engine {
	e := &Engine{
		Table:      t,
		Dealer:     dealer.NewDealer(time.Now().UnixNano()),
		Hub:        hub,
		opts:       opts,
		actionChan: make(chan Action, 32),
		quit:       make(chan struct{}),
	}
	e.refreshSummary()
	return e
}

func (e *Engine) ID() int { return e.Table.ID }

// Summary 可在任意 goroutine 调用
func (e *Engine) Summary() Summary { return *e.summary.Load() }

// Run 动作循环
func (e *Engine) Run() {
	for {
		select {
		case a := <-e.actionChan:
			a.reply <- e.handle(a)
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}

// Submit 投递动作并等待处理完成
func (e *Engine) Submit(p table.Player, cmd Command) Result {
	select {
	case <-e.quit:
		return Result{Err: ErrStopped}
	default:
	}

	a := Action{Player: p, Command: cmd, reply: make(chan Result, 1)}
	select {
	case e.actionChan <- a:
	case <-e.quit:
		return Result{Err: ErrStopped}
	}
	select {
	case r := <-a.reply:
		return r
	case <-e.quit:
		return Result{Err: ErrStopped}
	}
}

func (e *Engine) handle(a Action) Result {
	defer e.refreshSummary()

	if e.Table.State == table.Running {
		cmd, ok := a.Command.(RunningCommand)
		if !ok {
			return Result{Err: ErrAlreadyRunning}
		}
		return e.handleRunning(a.Player, cmd)
	}

	cmd, ok := a.Command.(LobbyCommand)
	if !ok {
		return Result{Err: ErrNotRunning}
	}
	return e.handleLobby(a.Player, cmd)
}

func (e *Engine) handleLobby(p table.Player, cmd LobbyCommand) Result {
	switch c := cmd.(type) {
	case Join:
		seat, err := e.addPlayer(p)
		return Result{Seat: seat, Err: err}
	case Leave:
		return Result{Err: e.removePlayer(p.ID)}
	case LoadData:
		data, err := e.loadData(p.ID)
		return Result{Data: data, Err: err}
	case Rename:
		return Result{Err: e.rename(p.ID, c.Name)}
	case Start:
		return Result{Err: e.start(p.ID)}
	default:
		panic(fmt.Sprintf("engine: unhandled lobby command %T", cmd))
	}
}

func (e *Engine) handleRunning(p table.Player, cmd RunningCommand) Result {
	switch c := cmd.(type) {
	case PlayCards:
		valid, err := e.playCards(p.ID, c.Indices)
		return Result{Valid: valid, Err: err}
	case TakeCard:
		return Result{Err: e.takeCard(p.ID)}
	case Skip:
		return Result{Err: e.skip(p.ID)}
	case Leave:
		return Result{Err: e.removePlayer(p.ID)}
	case LoadData:
		data, err := e.loadData(p.ID)
		return Result{Data: data, Err: err}
	default:
		panic(fmt.Sprintf("engine: unhandled running command %T", cmd))
	}
}

func (e *Engine) refreshSummary() {
	e.summary.Store(&Summary{
		ID:        e.Table.ID,
		Name:      e.Table.Name,
		Running:   e.Table.State == table.Running,
		Players:   len(e.Table.Seats),
		CreatedAt: e.Table.CreatedAt,
	})
}

// --------------------------
//        大厅阶段
// --------------------------

func (e *Engine) addPlayer(p table.Player) (int, error) {
	if e.opts.MaxPlayers > 0 && len(e.Table.Seats) >= e.opts.MaxPlayers {
		return table.NoSeat, ErrMatchFull
	}
	seat, err := e.Table.Sit(p)
	if err != nil {
		return table.NoSeat, err
	}
	utils.Log.Info("player joined", "match", e.Table.ID, "player", p.ID, "seat", seat, "master", e.Table.Master == seat)

	e.Hub.BroadcastToPlayers(e.Table.PlayerIDs(p.ID), websocket.Event(EventAddPlayer, map[string]any{
		"player":       p,
		"playerNumber": seat,
	}))
	return seat, nil
}

// removePlayer 开局后离开的玩家手牌回到摸牌堆，轮到他时顺延回合
func (e *Engine) removePlayer(id uint64) error {
	hadTurn := e.Table.State == table.Running && e.Table.IsTurn(id)

	seat, hand, promoted, err := e.Table.Leave(id)
	if err != nil {
		return err
	}
	e.Dealer.Refill(hand)
	utils.Log.Info("player left", "match", e.Table.ID, "player", id, "seat", seat)

	if promoted != nil {
		utils.Log.Info("master promoted", "match", e.Table.ID, "seat", promoted.Number)
		e.Hub.SendToPlayer(promoted.Player.ID, websocket.Event(EventPromote, nil))
	}

	e.Hub.BroadcastToPlayers(e.Table.PlayerIDs(), websocket.Event(EventRemovePlayer, map[string]any{
		"playerNumber": seat,
	}))

	if hadTurn && len(e.Table.Seats) > 0 {
		e.advanceTurn()
	}
	return nil
}

func (e *Engine) loadData(id uint64) (*MatchData, error) {
	if _, ok := e.Table.SeatOf(id); !ok {
		return nil, ErrNotSeated
	}
	return &MatchData{
		ID:       e.Table.ID,
		Name:     e.Table.Name,
		IsMaster: e.Table.IsMaster(id),
		Players:  e.Table.PlayersBySeat(),
	}, nil
}

func (e *Engine) rename(id uint64, name string) error {
	if !e.Table.IsMaster(id) {
		return ErrNotMaster
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return ErrInvalidName
	}
	e.Table.Name = name
	return nil
}

// start 填牌、翻开局牌、发牌，回合从入座最早的玩家开始
func (e *Engine) start(id uint64) error {
	if _, ok := e.Table.SeatOf(id); !ok {
		return ErrNotSeated
	}
	if !e.Table.IsMaster(id) {
		return ErrNotMaster
	}

	e.Dealer.NewDeck()
	e.Table.Discard = nil

	opener, _ := e.drawRandomCard(e.opts.NumericOpener)
	e.Table.Discard = append(e.Table.Discard, opener)

	// 批量发牌，不逐张通知
	for _, s := range e.Table.Seats {
		hand := make([]card.Card, 0, e.opts.HandSize)
		for i := 0; i < e.opts.HandSize; i++ {
			c, ok := e.drawRandomCard(false)
			if !ok {
				break
			}
			hand = append(hand, c)
		}
		e.Table.Hands[s.Player.ID] = hand
	}

	for _, s := range e.Table.Seats {
		e.Hub.SendToPlayer(s.Player.ID, websocket.Event(EventStartMatch, map[string]any{
			"stack": clone(e.Table.Discard),
			"cards": clone(e.Table.Hands[s.Player.ID]),
		}))
	}

	e.Table.State = table.Running
	e.Table.Turn = e.Table.FirstSeat()
	e.Table.Direction = 1
	e.Table.DrawStreak = 0
	e.Table.HasDrawn = false

	utils.Log.Info("match started", "match", e.Table.ID, "players", len(e.Table.Seats), "opener", opener.String())
	e.broadcastTurn()
	return nil
}

// --------------------------
//        对局阶段
// --------------------------

// drawRandomCard 摸牌堆空时把整个弃牌堆（含桌面顶牌）洗回摸牌堆
func (e *Engine) drawRandomCard(excludeActions bool) (card.Card, bool) {
	if e.Dealer.Len() == 0 && len(e.Table.Discard) > 0 {
		utils.Log.Debug("reshuffle discard pile", "match", e.Table.ID, "cards", len(e.Table.Discard))
		e.Dealer.Refill(e.Table.Discard)
		e.Table.Discard = nil
	}
	return e.Dealer.Draw(excludeActions)
}

func (e *Engine) playCards(id uint64, indices []int) (bool, error) {
	hand, ok := e.Table.Hands[id]
	if !ok {
		return false, ErrNotSeated
	}

	seen := make(map[int]bool, len(indices))
	cards := make([]card.Card, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(hand) || seen[idx] {
			return false, ErrInvalidIndex
		}
		seen[idx] = true
		cards = append(cards, hand[idx])
	}

	interjected := !e.Table.IsTurn(id)
	if !rules.IsValidPlay(interjected, e.Table.Top(), e.Table.DrawStreak, cards) {
		utils.Log.Debug("rejected play", "match", e.Table.ID, "player", id, "cards", cards, "top", e.Table.Top().String())
		return false, nil
	}

	for _, c := range cards {
		e.Table.Discard = append(e.Table.Discard, c)
		switch {
		case c.IsDrawTwo():
			e.Table.DrawStreak += 2
		case c.IsWildDrawFour():
			e.Table.DrawStreak += 4
		case c.IsReverse():
			e.Table.Direction = -e.Table.Direction
		case c.IsSkip():
			e.Table.StepTurn()
		}
	}

	// 从大到小删除，保证剩余下标不变
	sorted := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, idx := range sorted {
		hand = append(hand[:idx], hand[idx+1:]...)
	}
	e.Table.Hands[id] = hand

	utils.Log.Debug("play", "match", e.Table.ID, "player", id, "cards", cards, "interjected", interjected, "streak", e.Table.DrawStreak)
	e.Hub.BroadcastToPlayers(e.Table.PlayerIDs(), websocket.Event(EventPushStack, map[string]any{
		"cards": cards,
	}))
	e.advanceTurn()
	return true, nil
}

func (e *Engine) advanceTurn() {
	e.Table.StepTurn()
	e.Table.HasDrawn = false
	e.broadcastTurn()
}

func (e *Engine) broadcastTurn() {
	e.Hub.BroadcastToPlayers(e.Table.PlayerIDs(), websocket.Event(EventSetTurn, map[string]any{
		"turn":       e.Table.Turn,
		"drawStreak": e.Table.DrawStreak,
	}))
}

func (e *Engine) takeCard(id uint64) error {
	if !e.Table.IsTurn(id) {
		return ErrNotYourTurn
	}
	if e.Table.DrawStreak > 0 {
		e.takeDrawStreak(id)
		return nil
	}
	return e.drawOneCard(id)
}

// takeDrawStreak 接受罚牌：摸 DrawStreak 张，清零并结束回合
func (e *Engine) takeDrawStreak(id uint64) {
	drawn := make([]card.Card, 0, e.Table.DrawStreak)
	for i := 0; i < e.Table.DrawStreak; i++ {
		c, ok := e.drawRandomCard(false)
		if !ok {
			break
		}
		drawn = append(drawn, c)
	}
	e.giveCards(id, drawn)
	e.Table.DrawStreak = 0
	e.advanceTurn()
}

// drawOneCard 摸一张，不结束回合（之后需要 SKIP）
func (e *Engine) drawOneCard(id uint64) error {
	if e.Table.HasDrawn {
		return ErrAlreadyDrawn
	}
	drawn := make([]card.Card, 0, 1)
	if c, ok := e.drawRandomCard(false); ok {
		drawn = append(drawn, c)
	}
	e.giveCards(id, drawn)
	e.Table.HasDrawn = true
	return nil
}

func (e *Engine) giveCards(id uint64, cards []card.Card) {
	e.Table.Hands[id] = append(e.Table.Hands[id], cards...)
	e.Hub.SendToPlayer(id, websocket.Event(EventAddCardsToHand, map[string]any{
		"cards": clone(cards),
	}))
}

func (e *Engine) skip(id uint64) error {
	if !e.Table.IsTurn(id) {
		return ErrNotYourTurn
	}
	if !e.Table.HasDrawn {
		return ErrNotDrawn
	}
	e.advanceTurn()
	return nil
}

// 事件数据在 writePump 中异步序列化，必须拷贝
func clone(cards []card.Card) []card.Card {
	return append(make([]card.Card, 0, len(cards)), cards...)
}
