package card

import "fmt"

// Card 编码：color*16 + rank（3 位颜色 + 4 位点数）
type Card int

type Color int

type Rank int

const (
	Red Color = iota
	Green
	Blue
	Yellow
)

const (
	DrawTwo Rank = iota + 10
	Reverse
	Skip
	WildColor
	WildDrawFour
)

const (
	colorMask = 0x70 // 111-0000
	rankMask  = 0x0F // 000-1111
)

// NoCard 桌面为空时的占位值（洗牌后弃牌堆被清空）
const NoCard Card = -1

// Colors 所有花色，用于组牌
var Colors = []Color{Red, Green, Blue, Yellow}

func Build(c Color, r Rank) Card {
	return Card(int(c)<<4&colorMask | int(r)&rankMask)
}

func (c Card) Color() Color {
	if c < 0 {
		return -1
	}
	return Color((int(c) & colorMask) >> 4)
}

func (c Card) Rank() Rank {
	if c < 0 {
		return -1
	}
	return Rank(int(c) & rankMask)
}

func (c Card) IsNumeric() bool {
	r := c.Rank()
	return r >= 0 && r <= 9
}

func (c Card) IsAction() bool { return c.Rank() >= DrawTwo }
func (c Card) IsDrawTwo() bool { return c.Rank() == DrawTwo }
func (c Card) IsReverse() bool { return c.Rank() == Reverse }
func (c Card) IsSkip() bool { return c.Rank() == Skip }
func (c Card) IsWildColor() bool { return c.Rank() == WildColor }
func (c Card) IsWildDrawFour() bool { return c.Rank() == WildDrawFour }

// IsForcedDraw +2 / +4
func (c Card) IsForcedDraw() bool { return c.IsDrawTwo() || c.IsWildDrawFour() }

// IsMulticolor 变色牌与 +4 不参与颜色匹配
func (c Card) IsMulticolor() bool { return c.IsWildColor() || c.IsWildDrawFour() }

func (c Card) String() string {
	if c == NoCard {
		return "--"
	}
	colors := []string{"R", "G", "B", "Y"}
	ranks := map[Rank]string{
		DrawTwo:      "+2",
		Reverse:      "R",
		Skip:         "S",
		WildColor:    "W",
		WildDrawFour: "+4",
	}
	colorStr := "?"
	if col := c.Color(); col >= 0 && int(col) < len(colors) {
		colorStr = colors[col]
	}
	rankStr, ok := ranks[c.Rank()]
	if !ok {
		rankStr = fmt.Sprintf("%d", c.Rank())
	}
	return colorStr + rankStr
}
