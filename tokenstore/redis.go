package tokenstore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisTokenPrefix = "ast"
	redisPhonePrefix = "apc"
)

var errRedisUnavailable = errors.New("tokenstore: redis unavailable")

// Redis is a Store backed by a shared Redis instance, for multi-process
// deployments. Token entries carry their own TTL, so expiry needs no sweep.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis returns a Store over the given client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
		prefix: redisTokenPrefix,
	}
}

func (r *Redis) tokenKey(token string) string {
	return r.prefix + ":" + token
}

func (r *Redis) phoneKey(phone string) string {
	return redisPhonePrefix + ":" + phone
}

// Issue implements Store.
func (r *Redis) Issue(ctx context.Context, ownerID string, kind Kind, ttl time.Duration) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}

	value := string(kind) + "|" + ownerID
	if err := r.client.Set(ctx, r.tokenKey(token), value, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return token, nil
}

// Consume implements Store. GETDEL makes removal atomic with the lookup, so
// a token can be consumed by at most one caller even across processes.
func (r *Redis) Consume(ctx context.Context, token string, kind Kind) (string, error) {
	value, err := r.client.GetDel(ctx, r.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}

	storedKind, ownerID, ok := strings.Cut(value, "|")
	if !ok || Kind(storedKind) != kind {
		return "", ErrNotFound
	}
	return ownerID, nil
}

// IssuePhoneCode implements Store.
func (r *Redis) IssuePhoneCode(ctx context.Context, phone string, ttl time.Duration) (string, error) {
	code, err := newPhoneCode()
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, r.phoneKey(phone), code, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return code, nil
}

// VerifyPhoneCode implements Store. The compare-and-delete runs under WATCH
// so a code cannot be spent twice by racing callers, while a mismatch leaves
// the entry untouched.
func (r *Redis) VerifyPhoneCode(ctx context.Context, phone, code string) (bool, error) {
	const maxRetries = 4
	key := r.phoneKey(phone)

	for i := 0; i < maxRetries; i++ {
		matched := false

		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			stored, err := tx.Get(ctx, key).Result()
			if err != nil {
				return err
			}
			if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			matched = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, nil
			}
			return false, fmt.Errorf("%w: %v", errRedisUnavailable, err)
		}
		return matched, nil
	}

	return false, nil
}

// Sweep is a no-op: Redis expires entries natively.
func (r *Redis) Sweep(context.Context) (int, error) {
	return 0, nil
}
