// Package redisledger keeps the session token ledger in Redis. Entries
// expire with their token, so no janitor pass is needed.
package redisledger

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const defaultPrefix = "shortlink:tok:"

type Ledger struct {
	rdb    *redis.Client
	prefix string
}

// New connects to redisURL (redis://:pass@host:6379/0).
func New(ctx context.Context, redisURL, prefix string) (*Ledger, error) {
	const op = "redisledger.New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return NewWithClient(rdb, prefix), nil
}

func NewWithClient(rdb *redis.Client, prefix string) *Ledger {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Ledger{rdb: rdb, prefix: prefix}
}

// Keys are token hashes; raw tokens never reach Redis.
func (l *Ledger) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return l.prefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

func (l *Ledger) PutToken(ctx context.Context, e *domain.LedgerEntry) error {
	const op = "redisledger.PutToken"

	key := l.key(e.Token)
	kv := map[string]string{
		"uid":  e.UserID,
		"kind": string(e.Kind),
		"exp":  strconv.FormatInt(e.ExpiresAt, 10),
	}

	pipe := l.rdb.TxPipeline()
	pipe.HSet(ctx, key, kv)
	pipe.ExpireAt(ctx, key, time.Unix(e.ExpiresAt, 0))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *Ledger) GetToken(ctx context.Context, token string) (*domain.LedgerEntry, error) {
	const op = "redisledger.GetToken"

	m, err := l.rdb.HGetAll(ctx, l.key(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return parseEntry(op, token, m)
}

func (l *Ledger) DeleteToken(ctx context.Context, token string) error {
	const op = "redisledger.DeleteToken"

	if err := l.rdb.Del(ctx, l.key(token)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *Ledger) TakeToken(ctx context.Context, token string) (*domain.LedgerEntry, error) {
	const op = "redisledger.TakeToken"

	key := l.key(token)
	pipe := l.rdb.TxPipeline()
	get := pipe.HGetAll(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return parseEntry(op, token, get.Val())
}

// DeleteExpiredTokens is a no-op: Redis expires entries itself.
func (l *Ledger) DeleteExpiredTokens(context.Context, int64) (int64, error) {
	return 0, nil
}

func (l *Ledger) Close() error { return l.rdb.Close() }

func parseEntry(op, token string, m map[string]string) (*domain.LedgerEntry, error) {
	if len(m) == 0 {
		return nil, domain.ErrNotFound
	}
	exp, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: exp: %w", op, err)
	}
	return &domain.LedgerEntry{
		Token:     token,
		UserID:    m["uid"],
		Kind:      domain.TokenKind(m["kind"]),
		ExpiresAt: exp,
	}, nil
}

var _ ports.LedgerRepository = (*Ledger)(nil)
