// Package listener provides a Postgres LISTEN/NOTIFY consumer that keeps the
// risk score cache fresh. It holds a dedicated pgx connection (not from the
// pool) listening on the `component_changed` channel.
//
// The maintenance_components trigger fires pg_notify on every insert, update
// and delete; this consumer drops the cached risk score of the affected
// property so the next dashboard request recomputes it.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/immowaechter/immowaechter/internal/cache"
)

const (
	channel          = "component_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// ChangeEvent is the JSON payload from pg_notify('component_changed', ...).
type ChangeEvent struct {
	PropertyID  string `json:"property_id"`
	ComponentID string `json:"component_id"`
	Op          string `json:"op"`
}

// Invalidator drops cache entries. *cache.Cache satisfies it.
type Invalidator interface {
	Delete(key string) bool
}

// Start opens a dedicated connection and listens on the component_changed
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, inv Invalidator, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, inv, logger)
		if ctx.Err() != nil {
			logger.Info("Component listener stopped (context cancelled)")
			return
		}

		logger.Error("Component listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, inv Invalidator, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Component listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		Handle(notification.Payload, inv, logger)
	}
}

// Handle applies one notification payload. Malformed payloads are logged
// and ignored.
func Handle(payload string, inv Invalidator, logger *slog.Logger) {
	var event ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn("Failed to parse component event", "payload", payload, "error", err)
		return
	}
	if event.PropertyID == "" {
		logger.Warn("Component event without property_id", "payload", payload)
		return
	}

	dropped := inv.Delete(cache.RiskScoreKey(event.PropertyID))
	logger.Debug("Component changed",
		"property_id", event.PropertyID,
		"component_id", event.ComponentID,
		"op", event.Op,
		"cache_dropped", dropped)
}
