package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/contact-service/internal/domain"
)

const refreshKeyPrefix = "refresh:"

// KEYS[1] token key; ARGV id, user_id, created_at ms, expires_at ms, ttl ms.
var createRefreshScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'user_id', ARGV[2], 'created_at', ARGV[3], 'expires_at', ARGV[4], 'used', '0', 'revoked', '0')
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// KEYS[1] token key; ARGV[1] now ms. Returns 0 or the record as HGETALL pairs.
var consumeRefreshScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local f = redis.call('HMGET', KEYS[1], 'used', 'revoked', 'expires_at')
if f[1] ~= '0' or f[2] ~= '0' or tonumber(f[3]) <= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'used', '1')
return redis.call('HGETALL', KEYS[1])
`)

// KEYS[1] token key; ARGV[1] flag field.
var flagRefreshScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], '1')
return 1
`)

type redisRefreshTokenRepository struct {
	client redis.UniversalClient
	users  UserRepository
	opts   RefreshTokenOptions
}

// NewRedisRefreshTokenRepository stores refresh tokens as Redis hashes keyed by token.
// Redis has no foreign keys, so owners are checked against users before insert.
func NewRedisRefreshTokenRepository(client redis.UniversalClient, users UserRepository, opts RefreshTokenOptions) RefreshTokenRepository {
	return &redisRefreshTokenRepository{client: client, users: users, opts: opts.WithDefaults()}
}

func refreshKey(token string) string {
	return refreshKeyPrefix + token
}

func (r *redisRefreshTokenRepository) Create(ctx context.Context, userID string) (*domain.RefreshToken, error) {
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	rt := &domain.RefreshToken{UserID: userID}
	err := CreateWithRetry(r.opts, func(token string) error {
		now := r.opts.Now().UTC()
		rt.ID = uuid.NewString()
		rt.Token = token
		rt.CreatedAt = now
		rt.ExpiresAt = now.Add(r.opts.TTL)

		created, err := createRefreshScript.Run(ctx, r.client, []string{refreshKey(token)},
			rt.ID,
			userID,
			rt.CreatedAt.UnixMilli(),
			rt.ExpiresAt.UnixMilli(),
			r.opts.TTL.Milliseconds(),
		).Int()
		if err != nil {
			return fmt.Errorf("redis create refresh token: %w", err)
		}
		if created == 0 {
			return ErrDuplicate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *redisRefreshTokenRepository) Lookup(ctx context.Context, token string) (*domain.RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, refreshKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lookup refresh token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	rt, err := decodeRefreshHash(token, fields)
	if err != nil {
		return nil, err
	}
	if !rt.Live(r.opts.Now()) {
		return nil, ErrNotFound
	}
	return rt, nil
}

func (r *redisRefreshTokenRepository) Consume(ctx context.Context, token string) (*domain.RefreshToken, error) {
	res, err := consumeRefreshScript.Run(ctx, r.client, []string{refreshKey(token)}, r.opts.Now().UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis consume refresh token: %w", err)
	}
	pairs, ok := res.([]interface{})
	if !ok {
		return nil, ErrNotFound
	}
	fields := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, _ := pairs[i].(string)
		v, _ := pairs[i+1].(string)
		fields[k] = v
	}
	return decodeRefreshHash(token, fields)
}

func (r *redisRefreshTokenRepository) MarkUsed(ctx context.Context, token string) (bool, error) {
	return r.flag(ctx, token, "used")
}

func (r *redisRefreshTokenRepository) MarkRevoked(ctx context.Context, token string) (bool, error) {
	return r.flag(ctx, token, "revoked")
}

func (r *redisRefreshTokenRepository) flag(ctx context.Context, token, field string) (bool, error) {
	n, err := flagRefreshScript.Run(ctx, r.client, []string{refreshKey(token)}, field).Int()
	if err != nil {
		return false, fmt.Errorf("redis mark refresh token %s: %w", field, err)
	}
	return n == 1, nil
}

func decodeRefreshHash(token string, fields map[string]string) (*domain.RefreshToken, error) {
	createdMs, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token created_at: %w", err)
	}
	expiresMs, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode refresh token expires_at: %w", err)
	}
	return &domain.RefreshToken{
		ID:        fields["id"],
		UserID:    fields["user_id"],
		Token:     token,
		CreatedAt: time.UnixMilli(createdMs).UTC(),
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
		Used:      fields["used"] == "1",
		Revoked:   fields["revoked"] == "1",
	}, nil
}
