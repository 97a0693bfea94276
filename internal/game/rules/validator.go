package rules

import "UnoArena/internal/game/card"

// IsValidPlay 判断一组按顺序打出的牌是否合法。
// interjected 表示非当前回合玩家插牌；top 为桌面顶牌（可能为 card.NoCard）。
func IsValidPlay(interjected bool, top card.Card, drawStreak int, cards []card.Card) bool {
	if len(cards) == 0 {
		return false
	}

	for i, c := range cards {
		prev := top
		if i > 0 {
			prev = cards[i-1]
		}
		isFirst := i == 0
		isLast := i == len(cards)-1

		// 罚牌未结算时不能出数字牌
		if c.IsNumeric() && drawStreak > 0 {
			return false
		}

		// 变色牌不能单独结束一次罚牌
		if c.IsWildColor() && drawStreak > 0 && isLast {
			return false
		}

		// 非首张变色牌前面必须也是变色牌
		if c.IsWildColor() && !isFirst && !prev.IsWildColor() {
			return false
		}

		// 插牌时变色牌只能压在变色牌上（看桌面，不看本次出的牌）
		if isFirst && interjected && c.IsWildColor() && !top.IsWildColor() {
			return false
		}

		if c.IsWildColor() && !isLast && !validWildChain(cards[i:], drawStreak) {
			return false
		}

		if !matches(c, prev) {
			return false
		}
	}

	return true
}

// validWildChain 检查变色链之后的尾巴：
// 变色牌必须连续；其后的功能牌必须紧跟变色牌或与前一张完全相同，
// 且只有在已有罚牌时才能追加。
func validWildChain(chain []card.Card, drawStreak int) bool {
	for j, c := range chain {
		if c.IsWildColor() {
			if j == 0 || chain[j-1].IsWildColor() {
				continue
			}
			return false
		}
		if !c.IsAction() {
			return false
		}
		if !chain[j-1].IsWildColor() && c != chain[j-1] {
			return false
		}
		if drawStreak <= 0 {
			return false
		}
	}
	return true
}

func matches(c, prev card.Card) bool {
	if prev == card.NoCard {
		return true
	}
	if c.IsMulticolor() {
		return true
	}
	return c.Color() == prev.Color() || c.Rank() == prev.Rank()
}
