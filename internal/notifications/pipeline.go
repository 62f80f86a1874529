package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/mail"
	"github.com/immowaechter/immowaechter/internal/metrics"
	"github.com/immowaechter/immowaechter/internal/rules"
)

// RecordSource supplies sweep candidates and owner profiles.
// *component.Store satisfies it.
type RecordSource interface {
	DueComponents(ctx context.Context, until time.Time) ([]component.DueRecord, error)
	Profile(ctx context.Context, ownerID uuid.UUID) (*component.Profile, error)
}

// Options configures a Sweeper. Zero values are usable.
type Options struct {
	From     string
	AppURL   string
	Location *time.Location
	Ledger   Ledger    // nil: no dedupe, every eligible run resends
	Push     Publisher // nil: email only
	Logger   *slog.Logger
	Now      func() time.Time
}

// Sweeper runs reminder sweeps. It holds no per-run state; Run may be called
// repeatedly but is not meant to run concurrently with itself.
type Sweeper struct {
	source RecordSource
	mailer mail.Mailer
	ledger Ledger
	push   Publisher
	from   string
	appURL string
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper wires a sweeper from its collaborators.
func NewSweeper(source RecordSource, mailer mail.Mailer, opts Options) *Sweeper {
	s := &Sweeper{
		source: source,
		mailer: mailer,
		ledger: opts.Ledger,
		push:   opts.Push,
		from:   opts.From,
		appURL: opts.AppURL,
		loc:    opts.Location,
		logger: opts.Logger,
		now:    opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RunOptions tune a single sweep.
type RunOptions struct {
	Today  time.Time // zero: today in the sweeper's location
	DryRun bool      // evaluate only; no email, ledger or push
}

// Run performs one sweep. A non-nil error means the candidate fetch failed
// and nothing was processed; per-record failures land in Result.Errors.
func (s *Sweeper) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	start := time.Now()
	today := opts.Today
	if today.IsZero() {
		today = component.Today(s.now(), s.loc)
	}
	today = component.Civil(today)

	result := &Result{Today: today, DryRun: opts.DryRun}
	defer func() {
		result.Duration = time.Since(start)
		metrics.SweepDuration.Observe(result.Duration.Seconds())
	}()

	// 1. Fetch candidates
	until := today.AddDate(0, 0, rules.LookaheadDays)
	records, err := s.source.DueComponents(ctx, until)
	if err != nil {
		metrics.Sweeps.WithLabelValues("fetch_error").Inc()
		return result, &FetchError{Err: err}
	}

	// 2. Nothing due
	result.Checked = len(records)
	if len(records) == 0 {
		s.logger.Info("No upcoming maintenance", "today", today.Format(time.DateOnly))
		metrics.Sweeps.WithLabelValues("ok").Inc()
		return result, nil
	}
	s.logger.Info("Checking maintenance components",
		"today", today.Format(time.DateOnly), "count", len(records), "dry_run", opts.DryRun)

	// 3. Each record on its own
	for _, rec := range records {
		out := s.processRecord(ctx, rec, today, opts.DryRun)
		switch {
		case out.err != nil:
			result.AddErrorf("%v", out.err)
			metrics.Notifications.WithLabelValues("failed").Inc()
		case out.skip != SkipNone:
			result.Skipped++
			metrics.Notifications.WithLabelValues("skipped").Inc()
		case opts.DryRun:
			result.Notifications = append(result.Notifications, out.record)
			metrics.Notifications.WithLabelValues("dry_run").Inc()
		default:
			result.Sent++
			result.Notifications = append(result.Notifications, out.record)
			metrics.Notifications.WithLabelValues("sent").Inc()
		}
	}

	metrics.Sweeps.WithLabelValues("ok").Inc()
	s.logger.Info("Sweep complete", "summary", result.Summary())
	return result, nil
}

// outcome is the per-record verdict: exactly one of err, skip or record applies.
type outcome struct {
	record Record
	skip   SkipReason
	err    error
}

func skipped(reason SkipReason) outcome { return outcome{skip: reason} }

// processRecord never panics out of the loop; anything unexpected becomes an
// error tagged with the component id.
func (s *Sweeper) processRecord(ctx context.Context, rec component.DueRecord, today time.Time, dryRun bool) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("component %s: unexpected failure: %v", rec.ID, r)}
		}
	}()

	// a. joined rows present
	if reason := checkIntegrity(rec); reason != SkipNone {
		s.logSkip(rec, reason)
		return skipped(reason)
	}

	// b. owner contact
	profile, err := s.source.Profile(ctx, rec.Property.OwnerID)
	if errors.Is(err, component.ErrNotFound) {
		s.logSkip(rec, SkipMissingProfile)
		return skipped(SkipMissingProfile)
	}
	if err != nil {
		s.logger.Warn("Profile lookup failed", "component_id", rec.ID, "error", err)
		return outcome{err: fmt.Errorf("component %s: %w", rec.ID, err)}
	}

	// c-d. eligibility
	record, reason := buildRecord(rec, profile, today)
	if reason != SkipNone {
		s.logSkip(rec, reason)
		return skipped(reason)
	}
	if dryRun {
		return outcome{record: record}
	}

	// e-h. dispatch
	if s.alreadySent(ctx, rec.ID, today) {
		s.logSkip(rec, SkipAlreadyNotified)
		return skipped(SkipAlreadyNotified)
	}
	if err := s.deliver(ctx, record, today); err != nil {
		return outcome{err: err}
	}
	return outcome{record: record}
}

// checkIntegrity rejects records that cannot be rendered.
func checkIntegrity(rec component.DueRecord) SkipReason {
	switch {
	case !rec.IsActive:
		return SkipInactive
	case rec.NextMaintenance == nil:
		return SkipNoDueDate
	case rec.Property == nil:
		return SkipMissingProperty
	case rec.Interval == nil:
		return SkipMissingInterval
	}
	return SkipNone
}

// buildRecord evaluates eligibility and assembles the notification. It is
// pure; rec must have passed checkIntegrity.
func buildRecord(rec component.DueRecord, profile *component.Profile, today time.Time) (Record, SkipReason) {
	due := component.Civil(*rec.NextMaintenance)
	e := Evaluate(due, today)
	if !e.Eligible {
		return Record{}, SkipNotEligible
	}
	return Record{
		ComponentID:     rec.ID,
		UserID:          profile.ID,
		UserEmail:       profile.Email,
		UserName:        profile.Greeting(),
		PropertyID:      rec.Property.ID,
		PropertyName:    rec.Property.Name,
		PropertyAddress: rec.Property.FullAddress(),
		ComponentName:   rec.DisplayName(),
		DueDate:         due.Format(time.DateOnly),
		DaysUntil:       e.AbsDays(),
		IsOverdue:       e.IsOverdue,
	}, SkipNone
}

func (s *Sweeper) logSkip(rec component.DueRecord, reason SkipReason) {
	if reason.integrity() {
		s.logger.Warn("Skipping component", "component_id", rec.ID, "reason", string(reason))
		return
	}
	s.logger.Debug("Skipping component", "component_id", rec.ID, "reason", string(reason))
}
