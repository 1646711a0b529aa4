package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the LIMS client.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStore keeps the credential set in a single Redis hash, one hash per
// logical session slot. All three values live in one key so the tri-value
// write on login and the pair write on refresh are single HSET commands.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore describes the newredisstore operation and its observable behavior.
//
// NewRedisStore may return an error when input validation or dependency calls fail.
func NewRedisStore(client *redis.Client, prefix, slot string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("nil redis client")
	}
	if prefix == "" {
		prefix = "lims"
	}
	if slot == "" {
		return nil, errors.New("redis store slot must not be empty")
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":credentials:" + slot,
	}, nil
}

func (r *RedisStore) field(ctx context.Context, name string) (string, error) {
	val, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return val, nil
}

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken may return an error when input validation or dependency calls fail.
func (r *RedisStore) AccessToken(ctx context.Context) (string, error) {
	return r.field(ctx, KeyAccessToken)
}

// RefreshToken describes the refreshtoken operation and its observable behavior.
//
// RefreshToken may return an error when input validation or dependency calls fail.
func (r *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return r.field(ctx, KeyRefreshToken)
}

// Profile describes the profile operation and its observable behavior.
//
// Profile may return an error when input validation or dependency calls fail.
func (r *RedisStore) Profile(ctx context.Context) ([]byte, error) {
	val, err := r.field(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	if val == "" {
		return nil, nil
	}
	return []byte(val), nil
}

// SetSession describes the setsession operation and its observable behavior.
//
// SetSession may return an error when input validation or dependency calls fail.
func (r *RedisStore) SetSession(ctx context.Context, pair TokenPair, profile []byte) error {
	err := r.client.HSet(ctx, r.key,
		KeyAccessToken, pair.AccessToken,
		KeyRefreshToken, pair.RefreshToken,
		KeyUser, string(profile),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SetTokens describes the settokens operation and its observable behavior.
//
// SetTokens may return an error when input validation or dependency calls fail.
func (r *RedisStore) SetTokens(ctx context.Context, pair TokenPair) error {
	err := r.client.HSet(ctx, r.key,
		KeyAccessToken, pair.AccessToken,
		KeyRefreshToken, pair.RefreshToken,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// SetProfile describes the setprofile operation and its observable behavior.
//
// SetProfile may return an error when input validation or dependency calls fail.
func (r *RedisStore) SetProfile(ctx context.Context, profile []byte) error {
	if err := r.client.HSet(ctx, r.key, KeyUser, string(profile)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation or dependency calls fail.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
