package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

const maxUsernameLength = 32

var ErrInvalidUsername = errors.New("Invalid username")

// ValidUsername 去掉首尾空格后 1~32 个字符，不含控制字符
func ValidUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxUsernameLength {
		return "", ErrInvalidUsername
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ErrInvalidUsername
		}
	}
	return name, nil
}

type User struct {
	Subject   string
	Username  string
	LastLogin time.Time
}

// UserStore 记录登录过的身份
type UserStore interface {
	Upsert(ctx context.Context, u User) error
	Get(ctx context.Context, subject string) (User, bool, error)
}

// ---------- 内存 ----------

type memUsers struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryUserStore() UserStore {
	return &memUsers{users: make(map[string]User)}
}

func (m *memUsers) Upsert(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.Subject] = u
	return nil
}

func (m *memUsers) Get(ctx context.Context, subject string) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[subject]
	return u, ok, nil
}

// ---------- Postgres ----------

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	subject    TEXT PRIMARY KEY,
	username   TEXT NOT NULL,
	last_login TIMESTAMPTZ NOT NULL
)`

type pgUsers struct {
	db *sql.DB
}

// NewPostgresUserStore 建表（若不存在）
func NewPostgresUserStore(ctx context.Context, db *sql.DB) (UserStore, error) {
	if _, err := db.ExecContext(ctx, createUsersTable); err != nil {
		return nil, err
	}
	return &pgUsers{db: db}, nil
}

func (p *pgUsers) Upsert(ctx context.Context, u User) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO users (subject, username, last_login) VALUES ($1, $2, $3)
ON CONFLICT (subject) DO UPDATE SET username = EXCLUDED.username, last_login = EXCLUDED.last_login`,
		u.Subject, u.Username, u.LastLogin)
	return err
}

func (p *pgUsers) Get(ctx context.Context, subject string) (User, bool, error) {
	var u User
	err := p.db.QueryRowContext(ctx,
		`SELECT subject, username, last_login FROM users WHERE subject = $1`, subject,
	).Scan(&u.Subject, &u.Username, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}
