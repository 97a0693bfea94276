package lobby

import (
	"context"
	"errors"
	"strings"
	"time"

	"UnoArena/internal/utils"
)

var (
	ErrInvalidName = errors.New("invalid match name")
	ErrNoCreator   = errors.New("match creation disabled")
)

type Service struct {
	repo      Repo
	playerTTL int                            // seconds，玩家索引的过期时间
	OnCreate  func(name string) MatchSummary // ✅ 创建房间时调用（由注册表注入）
}

func NewService(repo Repo, playerTTL int) *Service {
	return &Service{repo: repo, playerTTL: playerTTL}
}

// PublishMatch 写入目录；目录只是展示用，失败不影响对局
func (s *Service) PublishMatch(ctx context.Context, m MatchSummary) {
	m.UpdatedAt = time.Now()
	if err := s.repo.SaveMatch(ctx, m); err != nil {
		utils.Log.Warn("save match summary failed", "match", m.ID, "err", err)
	}
}

func (s *Service) TrackPlayer(ctx context.Context, player uint64, matchID int) {
	if err := s.repo.SetPlayerMatch(ctx, player, matchID, s.playerTTL); err != nil {
		utils.Log.Warn("track player failed", "session", player, "match", matchID, "err", err)
	}
}

func (s *Service) UntrackPlayer(ctx context.Context, player uint64) {
	if err := s.repo.ClearPlayerMatch(ctx, player); err != nil {
		utils.Log.Warn("untrack player failed", "session", player, "err", err)
	}
}

func (s *Service) List(ctx context.Context) ([]MatchSummary, error) {
	return s.repo.ListMatches(ctx)
}

// RemoveMatch 房间关闭时从目录删除
func (s *Service) RemoveMatch(ctx context.Context, id int) {
	if err := s.repo.DeleteMatch(ctx, id); err != nil {
		utils.Log.Warn("delete match summary failed", "match", id, "err", err)
	}
}

// Create 通过注册表开一个新房间
func (s *Service) Create(ctx context.Context, name string) (MatchSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 64 {
		return MatchSummary{}, ErrInvalidName
	}
	if s.OnCreate == nil {
		return MatchSummary{}, ErrNoCreator
	}
	return s.OnCreate(name), nil
}
