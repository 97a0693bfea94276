package engine

// Command 按对局阶段区分：大厅阶段只接受 LobbyCommand，开局后只接受 RunningCommand。
// Leave 与 LoadData 两个阶段都可用。
type Command interface {
	command()
}

type LobbyCommand interface {
	Command
	lobby()
}

type RunningCommand interface {
	Command
	running()
}

type Join struct{}

type Leave struct{}

type LoadData struct{}

type Rename struct {
	Name string
}

type Start struct{}

// PlayCards 下标为出牌者当前手牌中的位置
type PlayCards struct {
	Indices []int
}

// TakeCard 有罚牌时接受罚牌，否则摸一张
type TakeCard struct{}

type Skip struct{}

func (Join) command()      {}
func (Leave) command()     {}
func (LoadData) command()  {}
func (Rename) command()    {}
func (Start) command()     {}
func (PlayCards) command() {}
func (TakeCard) command()  {}
func (Skip) command()      {}

func (Join) lobby()     {}
func (Leave) lobby()    {}
func (LoadData) lobby() {}
func (Rename) lobby()   {}
func (Start) lobby()    {}

func (Leave) running()     {}
func (LoadData) running()  {}
func (PlayCards) running() {}
func (TakeCard) running()  {}
func (Skip) running()      {}
