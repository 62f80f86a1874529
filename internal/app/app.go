// Package app assembles the reminder services from configuration. Both
// binaries use it so the API server and the CLI sweep behave identically.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/config"
	"github.com/immowaechter/immowaechter/internal/db"
	"github.com/immowaechter/immowaechter/internal/mail"
	"github.com/immowaechter/immowaechter/internal/notifications"
	"github.com/immowaechter/immowaechter/internal/risk"
)

// Services are the wired collaborators of one process.
type Services struct {
	Pool    *db.Pool
	Store   *component.Store
	Sweeper *notifications.Sweeper
	Scorer  *risk.Scorer

	closers []func() error
}

// Open connects to Postgres and the optional Redis ledger and AMQP broker,
// and builds the sweeper and risk scorer. Optional backends that fail to
// connect are logged and left out; only the database is mandatory.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s := &Services{Pool: pool, Store: component.NewStore(pool.Pool)}

	mailer, err := mail.New(mail.Settings{
		From:         cfg.EmailFrom,
		ResendAPIKey: cfg.ResendAPIKey,
		SMTP: mail.SMTPSettings{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			UseTLS:   cfg.SMTPUseTLS,
		},
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure mail: %w", err)
	}

	opts := notifications.Options{
		From:     cfg.EmailFrom,
		AppURL:   cfg.AppURL,
		Location: cfg.Location(),
		Logger:   logger,
	}

	if cfg.DedupeEnabled() {
		ledger, err := notifications.OpenRedisLedger(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Sent-marker ledger unavailable, sending without dedupe", "error", err)
		} else {
			opts.Ledger = ledger
			s.closers = append(s.closers, ledger.Close)
			logger.Info("Sent-marker ledger enabled", "redis", cfg.RedisAddr)
		}
	}

	push, err := notifications.NewAMQPPublisher(cfg.AMQPURL, cfg.PushQueue)
	switch {
	case err != nil:
		logger.Warn("Push publisher unavailable, email only", "error", err)
	case push != nil:
		opts.Push = push
		s.closers = append(s.closers, push.Close)
		logger.Info("Push publisher enabled", "queue", cfg.PushQueue)
	}

	s.Sweeper = notifications.NewSweeper(s.Store, mailer, opts)
	s.Scorer = risk.NewScorer(s.Store, cfg.Location(), nil)
	return s, nil
}

// Close releases every backend opened by Open.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
	s.Pool.Close()
}
