package lobby

import (
	"context"
	"sort"
	"sync"
)

type memRepo struct {
	mu      sync.Mutex
	matches map[int]MatchSummary
	players map[uint64]int
}

func NewMemoryRepo() Repo {
	return &memRepo{
		matches: make(map[int]MatchSummary),
		players: make(map[uint64]int),
	}
}

func (m *memRepo) SaveMatch(ctx context.Context, s MatchSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[s.ID] = s
	return nil
}

func (m *memRepo) ListMatches(ctx context.Context) ([]MatchSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MatchSummary, 0, len(m.matches))
	for _, s := range m.matches {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) DeleteMatch(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, id)
	return nil
}

// 内存版忽略 TTL
func (m *memRepo) SetPlayerMatch(ctx context.Context, player uint64, matchID int, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[player] = matchID
	return nil
}

func (m *memRepo) ClearPlayerMatch(ctx context.Context, player uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, player)
	return nil
}
