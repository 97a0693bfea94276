package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

func generateNonce() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NonceStore 钱包登录的一次性 nonce，防止重放
type NonceStore interface {
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	// Consume 只有第一次且未过期时返回 true
	Consume(ctx context.Context, nonce string) (bool, error)
}

// ---------- 内存 ----------

type memNonces struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce -> 过期时间
}

func NewMemoryNonceStore() NonceStore {
	return &memNonces{nonces: make(map[string]time.Time)}
}

func (m *memNonces) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[nonce] = time.Now().Add(ttl)
	return nil
}

func (m *memNonces) Consume(ctx context.Context, nonce string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.nonces[nonce]
	if !ok {
		return false, nil
	}
	delete(m.nonces, nonce)
	return time.Now().Before(exp), nil
}

// ---------- Redis ----------

type redisNonces struct {
	rdb *redis.Client
}

func NewRedisNonceStore(rdb *redis.Client) NonceStore {
	return &redisNonces{rdb: rdb}
}

func nonceKey(nonce string) string {
	return fmt.Sprintf("uno:nonce:%s", nonce)
}

func (r *redisNonces) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	return r.rdb.SetNX(ctx, nonceKey(nonce), 1, ttl).Err()
}

// DEL 返回 1 说明是本次删掉的，天然原子
func (r *redisNonces) Consume(ctx context.Context, nonce string) (bool, error) {
	n, err := r.rdb.Del(ctx, nonceKey(nonce)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
