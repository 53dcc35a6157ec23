/**
 * @description
 * Redis-backed persister, selected with SESSION_STORE=redis. Stores the
 * principal and wallet snapshot as JSON blobs under namespaced keys, the
 * same way the wallet snapshot was cached for fast redisplay upstream.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9: Redis client.
 */

package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/swiftlend/wallet-gateway/internal/domain"
)

const (
	redisPrincipalKey = "swiftlend:session:principal"
	redisWalletKey    = "swiftlend:session:wallet"
)

// RedisPersister stores session state in Redis.
type RedisPersister struct {
	client redis.UniversalClient
}

// NewRedisPersister wraps an existing Redis client.
func NewRedisPersister(client redis.UniversalClient) *RedisPersister {
	return &RedisPersister{client: client}
}

func (r *RedisPersister) SavePrincipal(ctx context.Context, p domain.Principal) error {
	return r.save(ctx, redisPrincipalKey, p)
}

func (r *RedisPersister) LoadPrincipal(ctx context.Context) (domain.Principal, error) {
	var p domain.Principal
	err := r.load(ctx, redisPrincipalKey, &p)
	return p, err
}

func (r *RedisPersister) ClearPrincipal(ctx context.Context) error {
	return r.client.Del(ctx, redisPrincipalKey).Err()
}

func (r *RedisPersister) SaveWalletSnapshot(ctx context.Context, w domain.Wallet) error {
	return r.save(ctx, redisWalletKey, w)
}

func (r *RedisPersister) LoadWalletSnapshot(ctx context.Context) (domain.Wallet, error) {
	var w domain.Wallet
	err := r.load(ctx, redisWalletKey, &w)
	return w, err
}

func (r *RedisPersister) ClearWalletSnapshot(ctx context.Context) error {
	return r.client.Del(ctx, redisWalletKey).Err()
}

func (r *RedisPersister) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	// Session state has no TTL; it lives until explicit logout.
	return r.client.Set(ctx, key, data, 0).Err()
}

func (r *RedisPersister) load(ctx context.Context, key string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ErrNotFound
	}
	return nil
}
