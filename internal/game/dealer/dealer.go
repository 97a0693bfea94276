package dealer

import (
	"math/rand"

	"UnoArena/internal/game/card"
)

// DeckSize 每种颜色 0-14 各一张，1-13 再各一张
const DeckSize = 4 * (15 + 13)

// Dealer 只负责摸牌堆（无规则判断）
// 摸牌堆是无序多重集，每次等概率随机抽一张
type Dealer struct {
	pile []card.Card
	rnd  *rand.Rand
}

func NewDealer(seed int64) *Dealer {
	return &Dealer{
		pile: make([]card.Card, 0, DeckSize),
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// NewDeck 按固定组成填满摸牌堆
func (d *Dealer) NewDeck() {
	d.pile = makeDeck()
}

func makeDeck() []card.Card {
	deck := make([]card.Card, 0, DeckSize)
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

// Draw 随机抽一张并移出摸牌堆。牌堆为空时 ok=false。
// excludeActions 为 true 时只抽数字牌；若已无数字牌则退化为任意牌。
func (d *Dealer) Draw(excludeActions bool) (card.Card, bool) {
	n := len(d.pile)
	if n == 0 {
		return card.NoCard, false
	}

	idx := d.rnd.Intn(n)
	if excludeActions {
		candidates := make([]int, 0, n)
		for i, c := range d.pile {
			if c.IsNumeric() {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) > 0 {
			idx = candidates[d.rnd.Intn(len(candidates))]
		}
	}

	c := d.pile[idx]
	d.pile[idx] = d.pile[n-1]
	d.pile = d.pile[:n-1]
	return c, true
}

// Refill 把牌放回摸牌堆（洗回弃牌堆、离场玩家手牌）
func (d *Dealer) Refill(cards []card.Card) {
	d.pile = append(d.pile, cards...)
}

func (d *Dealer) Len() int {
	return len(d.pile)
}
