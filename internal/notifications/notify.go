// Package notifications runs the maintenance reminder sweep.
//
// Pipeline: fetch due components → check joins → resolve owner → evaluate
// eligibility → render → send email → (optional) mark ledger + publish push.
// Every record is processed independently; only a failed bulk fetch aborts
// the sweep.
package notifications

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrFetch wraps a failed candidate query. Sweeps ending with it processed
// no records.
var ErrFetch = errors.New("fetch maintenance data")

// FetchError carries the query failure behind ErrFetch.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return ErrFetch.Error() + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

// SweepTimeout bounds one sweep, whoever triggered it.
const SweepTimeout = 10 * time.Minute

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Record is one successfully dispatched (or, in a dry run, eligible)
// reminder. DaysUntil is the absolute day distance; IsOverdue gives the sign.
type Record struct {
	ComponentID     uuid.UUID `json:"componentId"`
	UserID          uuid.UUID `json:"userId"`
	UserEmail       string    `json:"userEmail"`
	UserName        string    `json:"userName"`
	PropertyID      uuid.UUID `json:"propertyId"`
	PropertyName    string    `json:"propertyName"`
	PropertyAddress string    `json:"propertyAddress"`
	ComponentName   string    `json:"componentName"`
	DueDate         string    `json:"dueDate"`
	DaysUntil       int       `json:"daysUntil"`
	IsOverdue       bool      `json:"isOverdue"`
}

// SkipReason explains why a record produced no notification. Skips are not
// errors and never appear in Result.Errors.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipInactive        SkipReason = "inactive"
	SkipNoDueDate       SkipReason = "no_due_date"
	SkipMissingProperty SkipReason = "missing_property"
	SkipMissingInterval SkipReason = "missing_interval"
	SkipMissingProfile  SkipReason = "missing_profile"
	SkipNotEligible     SkipReason = "not_eligible"
	SkipAlreadyNotified SkipReason = "already_notified"
)

// integrity reports whether the skip is a data-integrity problem worth a warning.
func (r SkipReason) integrity() bool {
	switch r {
	case SkipMissingProperty, SkipMissingInterval, SkipMissingProfile:
		return true
	}
	return false
}

// Result tracks the outcome of one sweep.
type Result struct {
	Today         time.Time
	DryRun        bool
	Checked       int
	Sent          int
	Skipped       int
	Notifications []Record
	Errors        []string
	Duration      time.Duration
}

// AddErrorf records a formatted per-record failure.
func (r *Result) AddErrorf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"today=%s checked=%d sent=%d eligible=%d skipped=%d errors=%d dry_run=%v dur=%s",
		r.Today.Format(time.DateOnly), r.Checked, r.Sent, len(r.Notifications),
		r.Skipped, len(r.Errors), r.DryRun, r.Duration.Round(time.Millisecond))
}
