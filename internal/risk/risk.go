// Package risk computes the per-property maintenance risk score shown on the
// dashboard.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/metrics"
	"github.com/immowaechter/immowaechter/internal/rules"
)

// Assessment is the scored view of one property.
type Assessment struct {
	Score               int         `json:"score"`
	MaxScore            int         `json:"maxScore"`
	Level               rules.Level `json:"level"`
	CriticalComponents  int         `json:"criticalComponents"`
	LegalComponents     int         `json:"legalComponents"`
	OverdueMaintenances int         `json:"overdueMaintenances"`
	TotalComponents     int         `json:"totalComponents"`
	LastUpdated         time.Time   `json:"lastUpdated"`
}

// Assess scores a component list at now, with "today" taken as the calendar
// date in loc (UTC when nil). Inactive components are ignored. The input is
// not modified.
func Assess(components []component.Component, now time.Time, loc *time.Location) Assessment {
	a := Assessment{
		MaxScore:    rules.MaxScore,
		LastUpdated: now.UTC(),
	}
	today := component.Today(now, loc)

	total := 0
	for i := range components {
		c := &components[i]
		if !c.IsActive {
			continue
		}
		a.TotalComponents++

		cat := rules.Lookup(c.Category())
		total += cat.Weight
		if cat.Critical {
			a.CriticalComponents++
		}
		if c.IsLegal() {
			a.LegalComponents++
		}

		if days := overdueDays(c.NextMaintenance, today); days > 0 {
			a.OverdueMaintenances++
			total += min(days*rules.OverduePointsPerDay, rules.OverduePenaltyCap)
		}
		if isStale(c.LastMaintenance, today) {
			total += rules.StalePenalty
		}
	}

	a.Score = clamp(total, 0, rules.MaxScore)
	a.Level = rules.Classify(a.Score)
	return a
}

// overdueDays returns how many days next lies before today, or 0.
func overdueDays(next *time.Time, today time.Time) int {
	if next == nil {
		return 0
	}
	days := int(today.Sub(component.Civil(*next)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// isStale reports whether the last service is more than StaleAfterDays ago.
// Never-serviced components are not stale.
func isStale(last *time.Time, today time.Time) bool {
	if last == nil {
		return false
	}
	days := int(today.Sub(component.Civil(*last)).Hours() / 24)
	return days > rules.StaleAfterDays
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Source supplies a property and its components. *component.Store satisfies it.
type Source interface {
	Property(ctx context.Context, id uuid.UUID) (*component.Property, error)
	ForProperty(ctx context.Context, propertyID uuid.UUID) ([]component.Component, error)
}

// Scorer loads a property's components and assesses them.
type Scorer struct {
	source Source
	loc    *time.Location
	now    func() time.Time
}

// NewScorer creates a scorer that judges overdue dates in loc, the same zone
// the sweep uses. loc defaults to UTC and now to time.Now.
func NewScorer(source Source, loc *time.Location, now func() time.Time) *Scorer {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Scorer{source: source, loc: loc, now: now}
}

// Score returns the assessment for propertyID. A missing property yields
// component.ErrNotFound.
func (s *Scorer) Score(ctx context.Context, propertyID uuid.UUID) (Assessment, error) {
	if _, err := s.source.Property(ctx, propertyID); err != nil {
		return Assessment{}, fmt.Errorf("load property %s: %w", propertyID, err)
	}
	comps, err := s.source.ForProperty(ctx, propertyID)
	if err != nil {
		return Assessment{}, fmt.Errorf("load components for %s: %w", propertyID, err)
	}

	a := Assess(comps, s.now(), s.loc)
	metrics.RiskAssessments.WithLabelValues(string(a.Level)).Inc()
	return a, nil
}
