package lobby

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"UnoArena/internal/utils"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set: uno:matches                -> Set(matchID,...)
//	kv : uno:match:{id}             -> MatchSummary JSON（不过期）
//	kv : uno:playerMatch:{session}  -> matchID（带 TTL）
const matchIndexKey = "uno:matches"

func matchKey(id int) string {
	return fmt.Sprintf("uno:match:%d", id)
}
func playerKey(player uint64) string {
	return fmt.Sprintf("uno:playerMatch:%d", player)
}

func (r *redisRepo) SaveMatch(ctx context.Context, s MatchSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	p := r.rdb.Pipeline()
	p.Set(ctx, matchKey(s.ID), data, 0)
	p.SAdd(ctx, matchIndexKey, s.ID)
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) ListMatches(ctx context.Context) ([]MatchSummary, error) {
	ids, err := r.rdb.SMembers(ctx, matchIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []MatchSummary{}, nil
	}

	// 索引里的非法成员和找不到摘要的成员一起清掉
	var stale []any
	members := make([]string, 0, len(ids))
	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			stale = append(stale, raw)
			continue
		}
		members = append(members, raw)
		keys = append(keys, matchKey(id))
	}
	if len(keys) == 0 {
		r.prune(ctx, stale)
		return []MatchSummary{}, nil
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]MatchSummary, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, members[i])
			continue
		}
		var s MatchSummary
		if err := json.Unmarshal([]byte(str), &s); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		out = append(out, s)
	}
	r.prune(ctx, stale)

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *redisRepo) prune(ctx context.Context, stale []any) {
	if len(stale) == 0 {
		return
	}
	if err := r.rdb.SRem(ctx, matchIndexKey, stale...).Err(); err != nil {
		utils.Log.Warn("prune match index failed", "members", stale, "err", err)
	}
}

func (r *redisRepo) DeleteMatch(ctx context.Context, id int) error {
	p := r.rdb.Pipeline()
	p.Del(ctx, matchKey(id))
	p.SRem(ctx, matchIndexKey, id)
	_, err := p.Exec(ctx)
	return err
}

func (r *redisRepo) SetPlayerMatch(ctx context.Context, player uint64, matchID int, ttlSeconds int) error {
	return r.rdb.Set(ctx, playerKey(player), matchID, time.Duration(ttlSeconds)*time.Second).Err()
}

func (r *redisRepo) ClearPlayerMatch(ctx context.Context, player uint64) error {
	return r.rdb.Del(ctx, playerKey(player)).Err()
}
