package engine

import (
	"sync"
	"testing"

	"UnoArena/internal/game/card"
	"UnoArena/internal/game/dealer"
	"UnoArena/internal/game/table"
	"UnoArena/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHub 实现 Broadcaster，按玩家记录收到的消息
type mockHub struct {
	mu       sync.Mutex
	received map[uint64][]websocket.OutgoingMessage
}

func newMockHub() *mockHub {
	return &mockHub{received: make(map[uint64][]websocket.OutgoingMessage)}
}

func (h *mockHub) BroadcastToPlayers(ids []uint64, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		h.received[id] = append(h.received[id], msg)
	}
}

func (h *mockHub) SendToPlayer(id uint64, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received[id] = append(h.received[id], msg)
}

func (h *mockHub) events(id uint64, name string) []websocket.OutgoingMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []websocket.OutgoingMessage
	for _, m := range h.received[id] {
		if m.Event == name {
			out = append(out, m)
		}
	}
	return out
}

func (h *mockHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = make(map[uint64][]websocket.OutgoingMessage)
}

func player(id uint64) table.Player {
	return table.Player{ID: id, Username: "p"}
}

func newTestEngine(t *testing.T, ids ...uint64) (*Engine, *mockHub) {
	t.Helper()
	h := newMockHub()
	eng := NewEngine(table.New(1, "test"), h, DefaultOptions())
	eng.Dealer = dealer.NewDealer(42) // deterministic seed for test
	for _, id := range ids {
		_, err := eng.addPlayer(player(id))
		require.NoError(t, err)
	}
	return eng, h
}

func startedEngine(t *testing.T, ids ...uint64) (*Engine, *mockHub) {
	t.Helper()
	eng, h := newTestEngine(t, ids...)
	require.NoError(t, eng.start(ids[0]))
	h.reset()
	return eng, h
}

func totalCards(e *Engine) int {
	return e.Dealer.Len() + len(e.Table.Discard) + e.Table.CardsInHands()
}

func fullDeck() []card.Card {
	deck := make([]card.Card, 0, dealer.DeckSize)
	for _, col := range card.Colors {
		for r := card.Rank(0); r <= card.WildDrawFour; r++ {
			deck = append(deck, card.Build(col, r))
		}
		for r := card.Rank(1); r <= card.WildColor; r++ {
			deck = append(deck, card.Build(col, r))
		}
	}
	return deck
}

// rig 固定桌面和手牌，其余的牌全部放回摸牌堆以保持总数
func rig(e *Engine, top card.Card, hands map[uint64][]card.Card) {
	rest := fullDeck()
	take := func(c card.Card) {
		for i, x := range rest {
			if x == c {
				rest = append(rest[:i], rest[i+1:]...)
				return
			}
		}
		panic("card not in deck: " + c.String())
	}

	take(top)
	e.Table.Discard = []card.Card{top}
	for id := range e.Table.Hands {
		e.Table.Hands[id] = nil
	}
	for id, h := range hands {
		for _, c := range h {
			take(c)
		}
		e.Table.Hands[id] = append([]card.Card(nil), h...)
	}

	e.Dealer = dealer.NewDealer(42)
	e.Dealer.Refill(rest)
}

func TestAddPlayerBroadcastsToOthers(t *testing.T) {
	eng, h := newTestEngine(t, 1)

	seat, err := eng.addPlayer(player(2))
	require.NoError(t, err)
	assert.Equal(t, 1, seat)

	adds := h.events(1, EventAddPlayer)
	require.Len(t, adds, 1)
	data := adds[0].Data.(map[string]any)
	assert.Equal(t, 1, data["playerNumber"])
	assert.Equal(t, player(2), data["player"])

	assert.Empty(t, h.events(2, EventAddPlayer), "joiner is not told about itself")
	assert.True(t, eng.Table.IsMaster(1))
}

func TestMasterSuccession(t *testing.T) {
	eng, h := newTestEngine(t, 1, 2, 3)

	require.NoError(t, eng.removePlayer(1))
	assert.True(t, eng.Table.IsMaster(2))
	assert.Len(t, h.events(2, EventPromote), 1)
	assert.Empty(t, h.events(3, EventPromote))

	removed := h.events(3, EventRemovePlayer)
	require.Len(t, removed, 1)
	assert.Equal(t, 0, removed[0].Data.(map[string]any)["playerNumber"])

	require.NoError(t, eng.removePlayer(3))
	require.NoError(t, eng.removePlayer(2))
	assert.Equal(t, table.NoSeat, eng.Table.Master)

	assert.ErrorIs(t, eng.removePlayer(2), ErrNotSeated)
}

func TestSeatNumbersNeverReused(t *testing.T) {
	eng, _ := newTestEngine(t)

	first, err := eng.addPlayer(player(1))
	require.NoError(t, err)
	require.NoError(t, eng.removePlayer(1))
	second, err := eng.addPlayer(player(1))
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestMatchFull(t *testing.T) {
	eng, _ := newTestEngine(t)
	eng.opts.MaxPlayers = 2
	_, _ = eng.addPlayer(player(1))
	_, _ = eng.addPlayer(player(2))
	_, err := eng.addPlayer(player(3))
	assert.ErrorIs(t, err, ErrMatchFull)
}

func TestStartRequiresMaster(t *testing.T) {
	eng, _ := newTestEngine(t, 1, 2)
	assert.ErrorIs(t, eng.start(2), ErrNotMaster)
	assert.ErrorIs(t, eng.start(9), ErrNotSeated)
	assert.Equal(t, table.Lobby, eng.Table.State)
}

func TestStartDealsAndConservesDeck(t *testing.T) {
	eng, h := newTestEngine(t, 1, 2, 3)
	require.NoError(t, eng.start(1))

	assert.Equal(t, table.Running, eng.Table.State)
	assert.Equal(t, dealer.DeckSize, totalCards(eng))
	assert.Len(t, eng.Table.Discard, 1)
	assert.Equal(t, 0, eng.Table.Turn)

	for _, id := range []uint64{1, 2, 3} {
		starts := h.events(id, EventStartMatch)
		require.Len(t, starts, 1)
		data := starts[0].Data.(map[string]any)
		assert.Len(t, data["cards"], 6)
		assert.Equal(t, eng.Table.Hands[id], data["cards"])
		assert.Equal(t, eng.Table.Discard, data["stack"])

		turns := h.events(id, EventSetTurn)
		require.Len(t, turns, 1)
		assert.Equal(t, 0, turns[0].Data.(map[string]any)["turn"])
	}
}

func TestStartTurnBeginsAtEarliestSeat(t *testing.T) {
	eng, _ := newTestEngine(t, 1, 2, 3)
	require.NoError(t, eng.removePlayer(1))
	require.NoError(t, eng.start(2))
	assert.Equal(t, 1, eng.Table.Turn)
}

func TestNumericOpener(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		eng, _ := newTestEngine(t, 1)
		eng.Dealer = dealer.NewDealer(seed)
		eng.opts.NumericOpener = true
		require.NoError(t, eng.start(1))
		assert.True(t, eng.Table.Top().IsNumeric())
	}
}

func TestPhaseDispatch(t *testing.T) {
	eng, _ := newTestEngine(t, 1)

	r := eng.handle(Action{Player: player(1), Command: PlayCards{Indices: []int{0}}})
	assert.ErrorIs(t, r.Err, ErrNotRunning)

	r = eng.handle(Action{Player: player(1), Command: Start{}})
	require.NoError(t, r.Err)

	r = eng.handle(Action{Player: player(2), Command: Join{}})
	assert.ErrorIs(t, r.Err, ErrAlreadyRunning)

	r = eng.handle(Action{Player: player(1), Command: Start{}})
	assert.ErrorIs(t, r.Err, ErrAlreadyRunning)

	r = eng.handle(Action{Player: player(1), Command: LoadData{}})
	require.NoError(t, r.Err)
	assert.True(t, r.Data.IsMaster)
	assert.Equal(t, map[int]table.Player{0: player(1)}, r.Data.Players)
}

func TestAdvanceTurnSkipsVacatedSeat(t *testing.T) {
	eng, _ := newTestEngine(t, 1, 2, 3)
	require.NoError(t, eng.removePlayer(2))
	require.NoError(t, eng.start(1))
	require.Equal(t, 0, eng.Table.Turn)

	eng.advanceTurn()
	assert.Equal(t, 2, eng.Table.Turn)
}

func TestValidPlay(t *testing.T) {
	eng, h := startedEngine(t, 1, 2)
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{
		1: {card.Build(card.Green, 5), card.Build(card.Blue, 7)},
	})

	valid, err := eng.playCards(1, []int{0})
	require.NoError(t, err)
	assert.True(t, valid)

	assert.Equal(t, card.Build(card.Green, 5), eng.Table.Top())
	assert.Equal(t, []card.Card{card.Build(card.Blue, 7)}, eng.Table.Hands[1])
	assert.Equal(t, 1, eng.Table.Turn)

	for _, id := range []uint64{1, 2} {
		pushes := h.events(id, EventPushStack)
		require.Len(t, pushes, 1)
		assert.Equal(t, []card.Card{card.Build(card.Green, 5)}, pushes[0].Data.(map[string]any)["cards"])
		assert.Len(t, h.events(id, EventSetTurn), 1)
	}
}

func TestRejectedPlayIsNonMutating(t *testing.T) {
	eng, h := startedEngine(t, 1, 2)
	hand := []card.Card{card.Build(card.Green, 3), card.Build(card.Blue, 7)}
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{1: hand})

	valid, err := eng.playCards(1, []int{0})
	require.NoError(t, err)
	assert.False(t, valid)

	assert.Equal(t, hand, eng.Table.Hands[1])
	assert.Equal(t, []card.Card{card.Build(card.Red, 5)}, eng.Table.Discard)
	assert.Equal(t, 0, eng.Table.Turn)
	assert.Empty(t, h.events(1, EventPushStack))
	assert.Empty(t, h.events(1, EventSetTurn))
}

func TestInvalidIndexIsFatal(t *testing.T) {
	eng, _ := startedEngine(t, 1, 2)
	hand := []card.Card{card.Build(card.Red, 3)}
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{1: hand})

	for _, indices := range [][]int{{1}, {-1}, {0, 0}} {
		valid, err := eng.playCards(1, indices)
		assert.ErrorIs(t, err, ErrInvalidIndex)
		assert.False(t, valid)
		assert.Equal(t, hand, eng.Table.Hands[1])
	}
}

// 抢出：不在自己回合出牌
func TestInterjectedPlay(t *testing.T) {
	eng, h := startedEngine(t, 1, 2, 3)
	hand2 := []card.Card{card.Build(card.Green, card.WildColor), card.Build(card.Blue, 1)}
	hand3 := []card.Card{card.Build(card.Red, 7), card.Build(card.Yellow, 2)}
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{
		1: {card.Build(card.Blue, 9)},
		2: hand2,
		3: hand3,
	})
	require.Equal(t, 0, eng.Table.Turn)
	require.Equal(t, dealer.DeckSize, totalCards(eng))

	// 万能牌不能抢出
	valid, err := eng.playCards(2, []int{0})
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, hand2, eng.Table.Hands[2])
	assert.Equal(t, []card.Card{card.Build(card.Red, 5)}, eng.Table.Discard)
	assert.Equal(t, 0, eng.Table.Turn)
	assert.Empty(t, h.events(1, EventPushStack))

	// 重复下标：致命错误，不改状态
	valid, err = eng.playCards(3, []int{0, 0})
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.False(t, valid)
	assert.Equal(t, hand3, eng.Table.Hands[3])
	assert.Equal(t, []card.Card{card.Build(card.Red, 5)}, eng.Table.Discard)
	assert.Equal(t, 0, eng.Table.Turn)
	assert.Equal(t, dealer.DeckSize, totalCards(eng))

	// 同色同号可以抢出，回合从当前持有者往下走，而不是从抢出者
	valid, err = eng.playCards(3, []int{0})
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, card.Build(card.Red, 7), eng.Table.Top())
	assert.Equal(t, []card.Card{card.Build(card.Yellow, 2)}, eng.Table.Hands[3])
	assert.Equal(t, 1, eng.Table.Turn)
	assert.Equal(t, dealer.DeckSize, totalCards(eng))
	for _, id := range []uint64{1, 2, 3} {
		assert.Len(t, h.events(id, EventPushStack), 1)
	}
}

func TestMultiCardPlayRemovesByIndex(t *testing.T) {
	eng, _ := startedEngine(t, 1, 2)
	rig(eng, card.Build(card.Red, 2), map[uint64][]card.Card{
		1: {card.Build(card.Red, 5), card.Build(card.Blue, 1), card.Build(card.Red, 5), card.Build(card.Green, 9)},
	})

	valid, err := eng.playCards(1, []int{2, 0})
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, []card.Card{card.Build(card.Blue, 1), card.Build(card.Green, 9)}, eng.Table.Hands[1])
	assert.Len(t, eng.Table.Discard, 3)
}

func TestDrawTwoStreakTaken(t *testing.T) {
	eng, h := startedEngine(t, 1, 2)
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{
		1: {card.Build(card.Red, card.DrawTwo), card.Build(card.Blue, 1)},
		2: {card.Build(card.Green, 4)},
	})

	valid, err := eng.playCards(1, []int{0})
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, 2, eng.Table.DrawStreak)
	assert.Equal(t, 1, eng.Table.Turn)

	// 数字牌不能压在罚牌上
	valid, err = eng.playCards(2, []int{0})
	require.NoError(t, err)
	assert.False(t, valid)

	require.NoError(t, eng.takeCard(2))
	assert.Len(t, eng.Table.Hands[2], 3)
	assert.Equal(t, 0, eng.Table.DrawStreak)
	assert.Equal(t, 0, eng.Table.Turn)

	added := h.events(2, EventAddCardsToHand)
	require.Len(t, added, 1)
	assert.Len(t, added[0].Data.(map[string]any)["cards"], 2)
	assert.Empty(t, h.events(1, EventAddCardsToHand))
	assert.Equal(t, dealer.DeckSize, totalCards(eng))
}

func TestStackedStreak(t *testing.T) {
	eng, _ := startedEngine(t, 1, 2)
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{
		1: {card.Build(card.Red, card.DrawTwo)},
		2: {card.Build(card.Blue, card.WildDrawFour)},
	})

	_, err := eng.playCards(1, []int{0})
	require.NoError(t, err)
	valid, err := eng.playCards(2, []int{0})
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, 6, eng.Table.DrawStreak)
	assert.Equal(t, 0, eng.Table.Turn)
}

func TestSkipCardSkipsNextSeat(t *testing.T) {
	eng, _ := startedEngine(t, 1, 2, 3)
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{
		1: {card.Build(card.Red, card.Skip)},
	})

	valid, err := eng.playCards(1, []int{0})
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, 2, eng.Table.Turn)
}

func TestReverseFlipsDirection(t *testing.T) {
	eng, _ := startedEngine(t, 1, 2, 3)
	rig(eng, card.Build(card.Red, 5), map[uint64][]card.Card{
		1: {card.Build(card.Red, card.Reverse)},
	})

	valid, err := eng.playCards(1, []int{0})
	require.NoError(t, err)
	require.True(t, valid)
	assert.Equal(t, -1, eng.Table.Direction)
	assert.Equal(t, 2, eng.Table.Turn)
}

func TestDrawThenSkip(t *testing.T) {
	eng, h := startedEngine(t, 1, 2)

	assert.ErrorIs(t, eng.skip(1), ErrNotDrawn)
	assert.ErrorIs(t, eng.takeCard(2), ErrNotYourTurn)
	assert.ErrorIs(t, eng.skip(2), ErrNotYourTurn)

	before := len(eng.Table.Hands[1])
	require.NoError(t, eng.takeCard(1))
	assert.Len(t, eng.Table.Hands[1], before+1)
	assert.True(t, eng.Table.HasDrawn)
	assert.Equal(t, 0, eng.Table.Turn, "drawing does not end the turn")
	assert.Len(t, h.events(1, EventAddCardsToHand), 1)

	assert.ErrorIs(t, eng.takeCard(1), ErrAlreadyDrawn)

	require.NoError(t, eng.skip(1))
	assert.Equal(t, 1, eng.Table.Turn)
	assert.False(t, eng.Table.HasDrawn)
}

func TestReshuffleMovesWholeDiscardPile(t *testing.T) {
	eng, _ := startedEngine(t, 1)
	eng.Dealer = dealer.NewDealer(1)
	eng.Table.Discard = []card.Card{card.Build(card.Red, 1), card.Build(card.Red, 2), card.Build(card.Red, 3)}

	c, ok := eng.drawRandomCard(false)
	require.True(t, ok)
	assert.Equal(t, card.Red, c.Color())
	assert.Empty(t, eng.Table.Discard)
	assert.Equal(t, card.NoCard, eng.Table.Top())
	assert.Equal(t, 2, eng.Dealer.Len())
}

func TestDrawWithNoCardsLeft(t *testing.T) {
	eng, h := startedEngine(t, 1, 2)
	eng.Dealer = dealer.NewDealer(1)
	eng.Table.Discard = nil

	require.NoError(t, eng.takeCard(1))
	assert.True(t, eng.Table.HasDrawn)
	added := h.events(1, EventAddCardsToHand)
	require.Len(t, added, 1)
	assert.Empty(t, added[0].Data.(map[string]any)["cards"])
}

func TestLeaveWhileRunning(t *testing.T) {
	eng, h := startedEngine(t, 1, 2, 3)

	require.NoError(t, eng.removePlayer(1))
	assert.Equal(t, dealer.DeckSize, totalCards(eng))
	assert.Equal(t, 1, eng.Table.Turn, "turn moves off the leaver")
	assert.True(t, eng.Table.IsMaster(2))
	assert.Len(t, h.events(3, EventSetTurn), 1)
}

func TestRename(t *testing.T) {
	eng, _ := newTestEngine(t, 1, 2)
	assert.ErrorIs(t, eng.rename(2, "x"), ErrNotMaster)
	assert.ErrorIs(t, eng.rename(1, "   "), ErrInvalidName)
	require.NoError(t, eng.rename(1, " Friday night "))
	assert.Equal(t, "Friday night", eng.Table.Name)
}

// 随机对局：每一步之后牌总数恒为 112
func TestDeckConservationThroughPlay(t *testing.T) {
	ids := []uint64{1, 2, 3, 4}
	eng, _ := startedEngine(t, ids...)
	require.Equal(t, dealer.DeckSize, totalCards(eng))

	for step := 0; step < 400; step++ {
		turnPlayer, ok := eng.Table.Occupant(eng.Table.Turn)
		require.True(t, ok, "turn must point at a seated player")

		// 偶尔尝试插牌
		other := ids[(step+1)%len(ids)]
		if other != turnPlayer.ID && len(eng.Table.Hands[other]) > 0 {
			r := eng.handle(Action{Player: player(other), Command: PlayCards{Indices: []int{0}}})
			require.NoError(t, r.Err)
			require.Equal(t, dealer.DeckSize, totalCards(eng))
			continue
		}

		played := false
		for idx := range eng.Table.Hands[turnPlayer.ID] {
			r := eng.handle(Action{Player: turnPlayer, Command: PlayCards{Indices: []int{idx}}})
			require.NoError(t, r.Err)
			if r.Valid {
				played = true
				break
			}
		}
		if !played {
			streak := eng.Table.DrawStreak
			r := eng.handle(Action{Player: turnPlayer, Command: TakeCard{}})
			require.NoError(t, r.Err)
			if streak == 0 {
				r = eng.handle(Action{Player: turnPlayer, Command: Skip{}})
				require.NoError(t, r.Err)
			}
		}
		require.Equal(t, dealer.DeckSize, totalCards(eng), "step %d", step)
	}
}

func TestSubmitThroughActionLoop(t *testing.T) {
	h := newMockHub()
	eng := NewEngine(table.New(5, "loop"), h, DefaultOptions())
	go eng.Run()
	defer eng.Stop()

	r := eng.Submit(player(1), Join{})
	require.NoError(t, r.Err)
	assert.Equal(t, 0, r.Seat)

	var wg sync.WaitGroup
	for i := uint64(2); i <= 6; i++ {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			assert.NoError(t, eng.Submit(player(id), Join{}).Err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 6, eng.Summary().Players)

	r = eng.Submit(player(1), Start{})
	require.NoError(t, r.Err)
	assert.True(t, eng.Summary().Running)

	eng.Stop()
	assert.ErrorIs(t, eng.Submit(player(1), LoadData{}).Err, ErrStopped)
}
