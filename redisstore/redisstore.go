// Package redisstore provides a Redis-backed HintStore for deployments
// where onboarding state lives server-side per device or user.
//
// Records are small JSON strings under namespaced keys; last-write-wins
// between concurrent tabs is acceptable because seen state is monotonic
// and idempotent.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appshell "github.com/fleetdesk/appshell-go"
)

const defaultTimeout = 5 * time.Second

// Store implements appshell.HintStore on a Redis client.
type Store struct {
	client    *redis.Client
	keyPrefix string
	timeout   time.Duration
}

// compile-time check
var _ appshell.HintStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithKeyPrefix namespaces all keys (default "appshell:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.keyPrefix = prefix }
}

// WithTimeout bounds each Redis operation (default 5s).
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// New creates a Store on an established Redis client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client:    client,
		keyPrefix: "appshell:",
		timeout:   defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect initialises a Redis client, validates connectivity with a
// ping, and wraps it in a Store.
func Connect(ctx context.Context, addr string, db int, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("appshell/redisstore: ping: %w", err)
	}
	return New(client, opts...), nil
}

// Get returns the value for key, with ok=false when absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.client.Get(opCtx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("appshell/redisstore: get %q: %w", key, err)
	}
	return v, true, nil
}

// Set stores the value for key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(opCtx, s.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("appshell/redisstore: set %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
