package lobby

import "context"

// Repo 房间目录的存储抽象
type Repo interface {
	// SaveMatch 写入/覆盖房间摘要；摘要不过期，房间关闭时由 DeleteMatch 删除
	SaveMatch(ctx context.Context, s MatchSummary) error
	// ListMatches 按 ID 升序返回目录中的所有房间
	ListMatches(ctx context.Context) ([]MatchSummary, error)
	DeleteMatch(ctx context.Context, id int) error

	// SetPlayerMatch 记录会话所在房间（用于外部查询）
	SetPlayerMatch(ctx context.Context, player uint64, matchID int, ttlSeconds int) error
	ClearPlayerMatch(ctx context.Context, player uint64) error
}
