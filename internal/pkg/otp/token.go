package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTooFrequent  = errors.New("please wait before requesting again")
)

// TokenStore 一次性令牌 (找回密码链接等)
type TokenStore interface {
	// Issue 为 subject 签发令牌，冷却期内重复签发返回 ErrTooFrequent
	Issue(ctx context.Context, subject string) (string, error)
	// Consume 校验并立即作废令牌，返回签发时的 subject
	Consume(ctx context.Context, token string) (string, error)
}

type redisTokenStore struct {
	rdb      *redis.Client
	prefix   string
	ttl      time.Duration
	cooldown time.Duration
}

func NewRedisTokenStore(rdb *redis.Client, prefix string, ttl, cooldown time.Duration) TokenStore {
	return &redisTokenStore{rdb: rdb, prefix: prefix, ttl: ttl, cooldown: cooldown}
}

func (s *redisTokenStore) Issue(ctx context.Context, subject string) (string, error) {
	// 1. 频率限制
	if s.cooldown > 0 {
		ok, err := s.rdb.SetNX(ctx, s.prefix+"cooldown:"+subject, 1, s.cooldown).Result()
		if err != nil {
			return "", err
		}
		if !ok {
			return "", ErrTooFrequent
		}
	}

	// 2. 生成令牌，Redis 中只保存摘要
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	// 3. 存入 Redis
	if err := s.rdb.Set(ctx, s.key(token), subject, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Consume 使用 GETDEL，验证成功即删除，防止重放
func (s *redisTokenStore) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	subject, err := s.rdb.GetDel(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return subject, nil
}

func (s *redisTokenStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}
