package table

import (
	"errors"
	"time"

	"UnoArena/internal/game/card"
)

var (
	ErrAlreadySeated = errors.New("player already seated")
	ErrNotSeated     = errors.New("player not seated")
)

type State string

const (
	Lobby   State = "lobby"
	Running State = "running"
)

// NoSeat 未设置房主 / 无人时的座位号
const NoSeat = -1

// Player 对外公开的玩家信息
type Player struct {
	ID       uint64 `json:"ID"`
	Username string `json:"username"`
}

type Seat struct {
	Number int
	Player Player
}

// Table 一局的全部可变状态，只由所属 Engine 的单个 goroutine 读写
type Table struct {
	ID        int
	Name      string
	State     State
	CreatedAt time.Time

	// 入座顺序
	Seats []Seat
	// 下一个座位号，只增不减
	nextSeat int

	Hands   map[uint64][]card.Card
	Discard []card.Card

	Turn       int
	Direction  int
	DrawStreak int
	Master     int
	HasDrawn   bool
}

func New(id int, name string) *Table {
	return &Table{
		ID:        id,
		Name:      name,
		State:     Lobby,
		CreatedAt: time.Now(),
		Hands:     make(map[uint64][]card.Card),
		Direction: 1,
		Master:    NoSeat,
	}
}

// Sit 分配座位号；没有房主时成为房主
func (t *Table) Sit(p Player) (int, error) {
	if _, ok := t.SeatOf(p.ID); ok {
		return NoSeat, ErrAlreadySeated
	}
	number := t.nextSeat
	t.nextSeat++

	t.Seats = append(t.Seats, Seat{Number: number, Player: p})
	t.Hands[p.ID] = []card.Card{}
	if t.Master == NoSeat {
		t.Master = number
	}
	return number, nil
}

// Leave 移出座位并返回其手牌。若离开者是房主，房主顺延给入座最早的玩家，
// promoted 为新房主（无人时为 nil）。
func (t *Table) Leave(id uint64) (seat int, hand []card.Card, promoted *Seat, err error) {
	idx := -1
	for i, s := range t.Seats {
		if s.Player.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return NoSeat, nil, nil, ErrNotSeated
	}

	seat = t.Seats[idx].Number
	t.Seats = append(t.Seats[:idx], t.Seats[idx+1:]...)
	hand = t.Hands[id]
	delete(t.Hands, id)

	if t.Master == seat {
		t.Master = NoSeat
		if len(t.Seats) > 0 {
			next := t.Seats[0]
			t.Master = next.Number
			promoted = &next
		}
	}
	return seat, hand, promoted, nil
}

func (t *Table) SeatOf(id uint64) (int, bool) {
	for _, s := range t.Seats {
		if s.Player.ID == id {
			return s.Number, true
		}
	}
	return NoSeat, false
}

func (t *Table) Occupant(number int) (Player, bool) {
	for _, s := range t.Seats {
		if s.Number == number {
			return s.Player, true
		}
	}
	return Player{}, false
}

func (t *Table) IsTurn(id uint64) bool {
	seat, ok := t.SeatOf(id)
	return ok && seat == t.Turn
}

func (t *Table) IsMaster(id uint64) bool {
	seat, ok := t.SeatOf(id)
	return ok && seat == t.Master
}

// FirstSeat 入座最早的玩家（不一定是 0 号座位）
func (t *Table) FirstSeat() int {
	if len(t.Seats) == 0 {
		return NoSeat
	}
	return t.Seats[0].Number
}

// StepTurn 按方向移动回合指针，按已分配座位总数取模，跳过空座位
func (t *Table) StepTurn() {
	n := t.nextSeat
	if len(t.Seats) == 0 || n == 0 {
		return
	}
	turn := t.Turn
	for i := 0; i < n; i++ {
		turn = ((turn+t.Direction)%n + n) % n
		if _, ok := t.Occupant(turn); ok {
			t.Turn = turn
			return
		}
	}
}

func (t *Table) Top() card.Card {
	if len(t.Discard) == 0 {
		return card.NoCard
	}
	return t.Discard[len(t.Discard)-1]
}

// PlayerIDs 在座玩家 ID，except 可排除若干玩家
func (t *Table) PlayerIDs(except ...uint64) []uint64 {
	ids := make([]uint64, 0, len(t.Seats))
outer:
	for _, s := range t.Seats {
		for _, e := range except {
			if s.Player.ID == e {
				continue outer
			}
		}
		ids = append(ids, s.Player.ID)
	}
	return ids
}

// PlayersBySeat 座位号 -> 玩家
func (t *Table) PlayersBySeat() map[int]Player {
	out := make(map[int]Player, len(t.Seats))
	for _, s := range t.Seats {
		out[s.Number] = s.Player
	}
	return out
}

func (t *Table) CardsInHands() int {
	n := 0
	for _, h := range t.Hands {
		n += len(h)
	}
	return n
}
