// Package redis stores cart snapshots in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/kirana/internal/domain/cart"
)

// KeyPrefix namespaces every key written by Store.
const KeyPrefix = "kirana:"

var _ cart.SnapshotStore = (*Store)(nil)

// Store keeps each cart snapshot as a string value under KeyPrefix+key.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps an existing client. A zero ttl stores snapshots without expiry.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Dial parses url, connects and verifies the connection.
func Dial(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return New(client, ttl), nil
}

// Load implements cart.SnapshotStore.
func (s *Store) Load(ctx context.Context, key string) (cart.Snapshot, error) {
	data, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart.Snapshot{}, cart.ErrNoSnapshot
		}
		return cart.Snapshot{}, errors.Wrapf(err, "get %q", key)
	}
	return cart.DecodeSnapshot(data)
}

// Save implements cart.SnapshotStore.
func (s *Store) Save(ctx context.Context, key string, snap cart.Snapshot) error {
	if err := s.client.Set(ctx, KeyPrefix+key, cart.EncodeSnapshot(snap), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}
