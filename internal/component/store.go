package component

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store runs the prepared component queries registered by internal/db.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store over an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

// nullable interval columns as they come off a LEFT JOIN
type intervalCols struct {
	id       *uuid.UUID
	category *string
	label    *string
	months   *int
	legal    *bool
	ref      *string
	costMin  *float64
	costMax  *float64
}

func (ic *intervalCols) dest() []any {
	return []any{&ic.id, &ic.category, &ic.label, &ic.months, &ic.legal, &ic.ref, &ic.costMin, &ic.costMax}
}

func (ic *intervalCols) interval() *Interval {
	if ic.id == nil {
		return nil
	}
	iv := &Interval{
		ID:             *ic.id,
		LegalReference: ic.ref,
		CostMin:        ic.costMin,
		CostMax:        ic.costMax,
	}
	if ic.category != nil {
		iv.Category = *ic.category
	}
	if ic.label != nil {
		iv.ComponentLabel = *ic.label
	}
	if ic.months != nil {
		iv.IntervalMonths = *ic.months
	}
	if ic.legal != nil {
		iv.IsLegal = *ic.legal
	}
	return iv
}

func componentDest(c *Component) []any {
	return []any{
		&c.ID, &c.PropertyID, &c.CustomName, &c.Brand, &c.Model,
		&c.IsActive, &c.LastMaintenance, &c.NextMaintenance,
	}
}

// DueComponents returns every active component whose next_maintenance is set
// and falls on or before until, joined with its property and interval.
func (s *Store) DueComponents(ctx context.Context, until time.Time) ([]DueRecord, error) {
	rows, err := s.pool.Query(ctx, "due_components", Civil(until))
	if err != nil {
		return nil, fmt.Errorf("query due components: %w", err)
	}
	defer rows.Close()

	var records []DueRecord
	for rows.Next() {
		rec, err := scanDueRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due component: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanDueRecord(row scanner) (DueRecord, error) {
	var (
		rec DueRecord
		ic  intervalCols

		pID, pOwner                  *uuid.UUID
		pName, pAddr, pPostal, pCity *string
	)
	dest := componentDest(&rec.Component)
	dest = append(dest, &pID, &pOwner, &pName, &pAddr, &pPostal, &pCity)
	dest = append(dest, ic.dest()...)
	if err := row.Scan(dest...); err != nil {
		return DueRecord{}, err
	}

	rec.Interval = ic.interval()
	if pID != nil {
		rec.Property = &Property{ID: *pID}
		if pOwner != nil {
			rec.Property.OwnerID = *pOwner
		}
		rec.Property.Name = deref(pName)
		rec.Property.Address = deref(pAddr)
		rec.Property.PostalCode = deref(pPostal)
		rec.Property.City = deref(pCity)
	}
	return rec, nil
}

// Profile returns the owner's contact profile or ErrNotFound.
func (s *Store) Profile(ctx context.Context, ownerID uuid.UUID) (*Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx, "profile_by_id", ownerID).Scan(&p.ID, &p.Email, &p.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", ownerID, err)
	}
	return &p, nil
}

// Property returns a single property or ErrNotFound.
func (s *Store) Property(ctx context.Context, id uuid.UUID) (*Property, error) {
	var p Property
	err := s.pool.QueryRow(ctx, "property_by_id", id).Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Address, &p.PostalCode, &p.City,
		&p.PropertyType, &p.ConstructionYear, &p.LivingArea,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", id, err)
	}
	return &p, nil
}

// ForProperty returns the active components of a property with their intervals.
func (s *Store) ForProperty(ctx context.Context, propertyID uuid.UUID) ([]Component, error) {
	rows, err := s.pool.Query(ctx, "property_components", propertyID)
	if err != nil {
		return nil, fmt.Errorf("query property components: %w", err)
	}
	defer rows.Close()

	var components []Component
	for rows.Next() {
		var (
			c  Component
			ic intervalCols
		)
		if err := rows.Scan(append(componentDest(&c), ic.dest()...)...); err != nil {
			return nil, fmt.Errorf("scan property component: %w", err)
		}
		c.Interval = ic.interval()
		components = append(components, c)
	}
	return components, rows.Err()
}

// ServiceResult reports the dates written by RecordService.
type ServiceResult struct {
	ComponentID     uuid.UUID
	PropertyID      uuid.UUID
	LastMaintenance time.Time
	NextMaintenance time.Time
}

// RecordService sets last_maintenance to performedOn and recomputes
// next_maintenance from the component's interval, in one transaction.
func (s *Store) RecordService(ctx context.Context, componentID uuid.UUID, performedOn time.Time) (*ServiceResult, error) {
	res := &ServiceResult{ComponentID: componentID, LastMaintenance: Civil(performedOn)}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var months int
		err := tx.QueryRow(ctx, "component_interval_months", componentID).Scan(&res.PropertyID, &months)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get interval: %w", err)
		}
		if months <= 0 {
			return fmt.Errorf("component %s has no recurrence interval", componentID)
		}

		res.NextMaintenance = NextDue(performedOn, months)
		if _, err := tx.Exec(ctx, "record_component_service",
			componentID, res.LastMaintenance, res.NextMaintenance); err != nil {
			return fmt.Errorf("update component: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
