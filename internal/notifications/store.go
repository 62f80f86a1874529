package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ledgerPrefix = "immowaechter:sent"
	ledgerTTL    = 48 * time.Hour
)

// Ledger remembers which component was already notified on which day, so a
// second sweep on the same day does not resend.
type Ledger interface {
	WasSent(ctx context.Context, componentID uuid.UUID, day time.Time) (bool, error)
	MarkSent(ctx context.Context, componentID uuid.UUID, day time.Time) error
}

// RedisLedger stores one expiring key per (component, calendar day).
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger wraps an existing client.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, ttl: ledgerTTL}
}

// OpenRedisLedger connects to Redis and verifies the connection.
func OpenRedisLedger(ctx context.Context, addr, password string, db int) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedisLedger(client), nil
}

// WasSent reports whether a marker exists for the component and day.
func (l *RedisLedger) WasSent(ctx context.Context, componentID uuid.UUID, day time.Time) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerKey(componentID, day)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return n > 0, nil
}

// MarkSent writes the marker for the component and day.
func (l *RedisLedger) MarkSent(ctx context.Context, componentID uuid.UUID, day time.Time) error {
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := l.client.Set(ctx, ledgerKey(componentID, day), stamp, l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger write: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

func ledgerKey(componentID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s", ledgerPrefix, componentID, day.Format(time.DateOnly))
}
