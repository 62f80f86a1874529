// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/immowaechter/immowaechter/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

const componentColumns = `c.id, c.property_id, c.custom_name, c.brand, c.model,
	c.is_active, c.last_maintenance, c.next_maintenance`

const intervalColumns = `i.id, i.category, i.component_name, i.interval_months,
	i.is_legal_requirement, i.legal_reference, i.cost_estimate_min, i.cost_estimate_max`

// Statements maps prepared statement names to SQL. Exported so tests and
// the schema check can see every query the service issues.
var Statements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// Sweep: candidate components within the lookahead window. LEFT JOINs
	// so a dangling property or interval surfaces as NULLs and is skipped
	// by the dispatcher instead of silently vanishing.
	"due_components": `
		SELECT ` + componentColumns + `,
			p.id, p.user_id, p.name, p.address, p.postal_code, p.city,
			` + intervalColumns + `
		FROM `+config.ComponentsTable+` c
		LEFT JOIN `+config.PropertiesTable+` p ON p.id = c.property_id
		LEFT JOIN `+config.IntervalsTable+` i ON i.id = c.interval_id
		WHERE c.is_active = true
		  AND c.next_maintenance IS NOT NULL
		  AND c.next_maintenance <= $1
		ORDER BY c.next_maintenance, c.id`,

	// Sweep: owner contact lookup
	"profile_by_id": "SELECT id, email, COALESCE(full_name, '') FROM " + config.ProfilesTable + " WHERE id = $1",

	// Risk score
	"property_by_id": `
		SELECT id, user_id, COALESCE(name, ''), COALESCE(address, ''),
			COALESCE(postal_code, ''), COALESCE(city, ''), COALESCE(property_type, ''),
			construction_year, living_area
		FROM `+config.PropertiesTable+` WHERE id = $1`,
	"property_components": `
		SELECT ` + componentColumns + `,
			` + intervalColumns + `
		FROM `+config.ComponentsTable+` c
		LEFT JOIN `+config.IntervalsTable+` i ON i.id = c.interval_id
		WHERE c.property_id = $1 AND c.is_active = true
		ORDER BY c.next_maintenance NULLS LAST, c.id`,

	// Component servicing
	"component_interval_months": `
		SELECT c.property_id, i.interval_months
		FROM `+config.ComponentsTable+` c
		JOIN `+config.IntervalsTable+` i ON i.id = c.interval_id
		WHERE c.id = $1
		FOR UPDATE OF c`,
	"record_component_service": `
		UPDATE `+config.ComponentsTable+`
		SET last_maintenance = $2, next_maintenance = $3, updated_at = NOW()
		WHERE id = $1`,
}

// registerPreparedStatements registers all statements the API and CLI use.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
