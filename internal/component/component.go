// Package component holds the property/maintenance data model and the
// Postgres queries that supply it to the reminder sweep and the risk scorer.
//
// Joined rows are normalized here: a to-one relationship is either a single
// pointer or nil, never a list.
package component

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a property, profile or component row is missing.
var ErrNotFound = errors.New("not found")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Interval is a catalog entry describing a maintenance task type.
type Interval struct {
	ID             uuid.UUID
	Category       string
	ComponentLabel string
	IntervalMonths int
	IsLegal        bool
	LegalReference *string
	CostMin        *float64
	CostMax        *float64
}

// Property is a real-estate asset owned by a user.
type Property struct {
	ID               uuid.UUID
	OwnerID          uuid.UUID
	Name             string
	Address          string
	PostalCode       string
	City             string
	PropertyType     string
	ConstructionYear *int
	LivingArea       *float64
}

// FullAddress joins street, postal code and city, dropping empty parts:
// "Hauptstraße 1, 1010 Wien".
func (p *Property) FullAddress() string {
	if p == nil {
		return ""
	}
	place := joinNonEmpty(" ", p.PostalCode, p.City)
	return joinNonEmpty(", ", p.Address, place)
}

// Profile is the owner's contact data.
type Profile struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

// Greeting returns the name used in message salutations.
func (p *Profile) Greeting() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	return p.Email
}

// Component is a tracked piece of property infrastructure.
type Component struct {
	ID              uuid.UUID
	PropertyID      uuid.UUID
	CustomName      *string
	Brand           *string
	Model           *string
	IsActive        bool
	LastMaintenance *time.Time
	NextMaintenance *time.Time
	Interval        *Interval
}

// DisplayName returns the custom name when set, otherwise the catalog label.
func (c *Component) DisplayName() string {
	if c.CustomName != nil && strings.TrimSpace(*c.CustomName) != "" {
		return strings.TrimSpace(*c.CustomName)
	}
	if c.Interval != nil {
		return c.Interval.ComponentLabel
	}
	return ""
}

// Category returns the interval category, or "" when the interval is missing.
func (c *Component) Category() string {
	if c.Interval == nil {
		return ""
	}
	return c.Interval.Category
}

// IsLegal reports whether the component's interval is legally mandated.
func (c *Component) IsLegal() bool {
	return c.Interval != nil && c.Interval.IsLegal
}

// DueRecord is one candidate row of the notification sweep: an active
// component with a due date, joined with its property and interval. Property
// or Interval is nil when the join found nothing.
type DueRecord struct {
	Component
	Property *Property
}

// --------------------------------------------------------------------------
// Dates
// --------------------------------------------------------------------------

// Civil truncates t to its calendar date (in t's location) and returns it as
// midnight UTC, so differences between two civil dates are whole days.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Civil(now.In(loc))
}

// NextDue adds months calendar months to last. Day overflow normalizes the
// way time.AddDate does (31 Jan + 1 month = 3 Mar).
func NextDue(last time.Time, months int) time.Time {
	return Civil(last).AddDate(0, months, 0)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
