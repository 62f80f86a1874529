package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/mail"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeSource struct {
	records    []component.DueRecord
	profiles   map[uuid.UUID]*component.Profile
	fetchErr   error
	profileErr error
	panicOwner uuid.UUID

	fetchCalls   int
	profileCalls int
	until        time.Time
}

func (f *fakeSource) DueComponents(_ context.Context, until time.Time) ([]component.DueRecord, error) {
	f.fetchCalls++
	f.until = until
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	// Mirrors the store query: only active rows with a due date.
	var out []component.DueRecord
	for _, r := range f.records {
		if r.NextMaintenance == nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSource) Profile(_ context.Context, ownerID uuid.UUID) (*component.Profile, error) {
	f.profileCalls++
	if ownerID == f.panicOwner {
		panic("corrupt profile row")
	}
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p, ok := f.profiles[ownerID]
	if !ok {
		return nil, component.ErrNotFound
	}
	return p, nil
}

type fakeMailer struct {
	sent   []mail.Message
	failTo map[string]error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if err, ok := m.failTo[msg.To[0]]; ok {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type memLedger struct {
	marks   map[string]bool
	readErr error
}

func newMemLedger() *memLedger { return &memLedger{marks: map[string]bool{}} }

func (l *memLedger) WasSent(_ context.Context, id uuid.UUID, day time.Time) (bool, error) {
	if l.readErr != nil {
		return false, l.readErr
	}
	return l.marks[ledgerKey(id, day)], nil
}

func (l *memLedger) MarkSent(_ context.Context, id uuid.UUID, day time.Time) error {
	l.marks[ledgerKey(id, day)] = true
	return nil
}

type fakePublisher struct {
	events []Record
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, rec Record) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, rec)
	return nil
}

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	source *fakeSource
	mailer *fakeMailer
}

func newFixture() *fixture {
	return &fixture{
		source: &fakeSource{profiles: map[uuid.UUID]*component.Profile{}},
		mailer: &fakeMailer{failTo: map[string]error{}},
	}
}

// add registers a due record (offset days from sweepDay) with its own owner.
func (f *fixture) add(offset int, email string) component.DueRecord {
	owner := uuid.New()
	due := sweepDay.AddDate(0, 0, offset)
	rec := component.DueRecord{
		Component: component.Component{
			ID:              uuid.New(),
			IsActive:        true,
			NextMaintenance: &due,
			Interval:        &component.Interval{ID: uuid.New(), Category: "heating", ComponentLabel: "Gastherme", IntervalMonths: 12},
		},
		Property: &component.Property{ID: uuid.New(), OwnerID: owner, Name: "Haus " + email, Address: "Ring 1", PostalCode: "1010", City: "Wien"},
	}
	rec.PropertyID = rec.Property.ID
	f.source.profiles[owner] = &component.Profile{ID: owner, Email: email, FullName: "Owner " + email}
	f.source.records = append(f.source.records, rec)
	return rec
}

func (f *fixture) sweeper(opts Options) *Sweeper {
	opts.Logger = quietLogger
	opts.From = "ImmoWächter <erinnerung@immowaechter.at>"
	return NewSweeper(f.source, f.mailer, opts)
}

func run(t *testing.T, s *Sweeper, dryRun bool) *Result {
	t.Helper()
	res, err := s.Run(context.Background(), RunOptions{Today: sweepDay, DryRun: dryRun})
	require.NoError(t, err)
	return res
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRunEmptyCandidateSet(t *testing.T) {
	f := newFixture()

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 0, res.Checked)
	assert.Equal(t, 0, res.Sent)
	assert.Empty(t, res.Notifications)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 0, f.source.profileCalls)
}

func TestRunQueriesThirtyDayWindow(t *testing.T) {
	f := newFixture()

	run(t, f.sweeper(Options{}), false)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), f.source.until)
}

func TestRunUsesClockInLocation(t *testing.T) {
	vienna, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)
	f := newFixture()
	f.add(7, "a@example.at")

	// 23:30 UTC on Dec 31 is Jan 1 in Vienna.
	s := f.sweeper(Options{
		Location: vienna,
		Now:      func() time.Time { return time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC) },
	})
	res, err := s.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, sweepDay, res.Today)
	assert.Equal(t, 1, res.Sent)
}

func TestRunFetchErrorAborts(t *testing.T) {
	f := newFixture()
	f.add(7, "a@example.at")
	f.source.fetchErr = errors.New("connection refused")

	res, err := f.sweeper(Options{}).Run(context.Background(), RunOptions{Today: sweepDay})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "connection refused")
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.EqualError(t, fetchErr.Err, "connection refused")
	assert.Equal(t, 0, res.Checked)
	assert.Equal(t, 0, f.source.profileCalls)
	assert.Empty(t, f.mailer.sent)
}

func TestRunSendsEligibleOnly(t *testing.T) {
	f := newFixture()
	due7 := f.add(7, "seven@example.at")
	f.add(10, "ten@example.at")
	overdue := f.add(-14, "late@example.at")
	f.add(-10, "late10@example.at")

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 4, res.Checked)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Notifications, 2)

	first := res.Notifications[0]
	assert.Equal(t, due7.ID, first.ComponentID)
	assert.Equal(t, 7, first.DaysUntil)
	assert.False(t, first.IsOverdue)
	assert.Equal(t, "2025-01-08", first.DueDate)
	assert.Equal(t, "Gastherme", first.ComponentName)
	assert.Equal(t, "Ring 1, 1010 Wien", first.PropertyAddress)

	second := res.Notifications[1]
	assert.Equal(t, overdue.ID, second.ComponentID)
	assert.Equal(t, 14, second.DaysUntil)
	assert.True(t, second.IsOverdue)

	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, []string{"late@example.at"}, f.mailer.sent[1].To)
	assert.Contains(t, f.mailer.sent[1].Subject, "⚠️ Überfällige Wartung")
}

func TestRunNullDueDateNeverNotified(t *testing.T) {
	f := newFixture()
	rec := f.add(7, "a@example.at")
	f.source.records[0].NextMaintenance = nil

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 0, res.Checked)
	assert.Empty(t, res.Notifications)
	assert.Equal(t, 0, f.source.profileCalls)

	// Even if a supplier hands one over, it is skipped.
	assert.Equal(t, SkipNoDueDate, checkIntegrity(component.DueRecord{
		Component: component.Component{ID: rec.ID, IsActive: true},
		Property:  rec.Property,
	}))
}

func TestRunIntegritySkips(t *testing.T) {
	f := newFixture()
	f.add(7, "noprop@example.at")
	f.add(7, "nointerval@example.at")
	f.add(7, "noprofile@example.at")
	f.add(7, "inactive@example.at")
	f.source.records[0].Property = nil
	f.source.records[1].Interval = nil
	delete(f.source.profiles, f.source.records[2].Property.OwnerID)
	f.source.records[3].IsActive = false

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 4, res.Checked)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 0, res.Sent)
	assert.Empty(t, res.Errors)
	assert.Empty(t, f.mailer.sent)
	// Only the record with property and interval reaches the profile lookup.
	assert.Equal(t, 1, f.source.profileCalls)
}

func TestRunIsolatesFailingRecord(t *testing.T) {
	f := newFixture()
	for i := 1; i <= 5; i++ {
		f.add(7, fmt.Sprintf("owner%d@example.at", i))
	}
	broken := f.source.records[2]
	f.source.panicOwner = broken.Property.OwnerID

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 5, res.Checked)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 5, f.source.profileCalls)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], broken.ID.String())
	assert.Contains(t, res.Errors[0], "corrupt profile row")
}

func TestRunProfileLookupErrorIsRecorded(t *testing.T) {
	f := newFixture()
	rec := f.add(7, "a@example.at")
	f.source.profileErr = errors.New("timeout")

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 0, res.Sent)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, fmt.Sprintf("component %s: timeout", rec.ID), res.Errors[0])
}

func TestRunTransportFailureContinues(t *testing.T) {
	f := newFixture()
	f.add(7, "bounce@example.at")
	f.add(3, "ok@example.at")
	f.mailer.failTo["bounce@example.at"] = errors.New("mailbox unavailable")

	res := run(t, f.sweeper(Options{}), false)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, "ok@example.at", res.Notifications[0].UserEmail)
	assert.Equal(t, []string{"failed to send to bounce@example.at: mailbox unavailable"}, res.Errors)
}

func TestRunWithoutLedgerResends(t *testing.T) {
	f := newFixture()
	f.add(7, "a@example.at")
	s := f.sweeper(Options{})

	run(t, s, false)
	run(t, s, false)
	assert.Len(t, f.mailer.sent, 2)
}

func TestRunLedgerPreventsSameDayResend(t *testing.T) {
	f := newFixture()
	f.add(7, "a@example.at")
	ledger := newMemLedger()
	s := f.sweeper(Options{Ledger: ledger})

	first := run(t, s, false)
	second := run(t, s, false)
	assert.Equal(t, 1, first.Sent)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, f.mailer.sent, 1)
}

func TestRunLedgerReadFailureStillSends(t *testing.T) {
	f := newFixture()
	f.add(7, "a@example.at")
	ledger := newMemLedger()
	ledger.readErr = errors.New("redis down")

	res := run(t, f.sweeper(Options{Ledger: ledger}), false)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Errors)
}

func TestRunLedgerNotMarkedOnFailedSend(t *testing.T) {
	f := newFixture()
	rec := f.add(7, "a@example.at")
	f.mailer.failTo["a@example.at"] = errors.New("rejected")
	ledger := newMemLedger()

	run(t, f.sweeper(Options{Ledger: ledger}), false)
	assert.False(t, ledger.marks[ledgerKey(rec.ID, sweepDay)])
}

func TestRunPublishesPushAfterSend(t *testing.T) {
	f := newFixture()
	rec := f.add(0, "a@example.at")
	f.add(0, "fail@example.at")
	f.mailer.failTo["fail@example.at"] = errors.New("rejected")
	push := &fakePublisher{}

	res := run(t, f.sweeper(Options{Push: push}), false)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, push.events, 1)
	assert.Equal(t, rec.ID, push.events[0].ComponentID)
}

func TestRunPushFailureDoesNotFailRecord(t *testing.T) {
	f := newFixture()
	f.add(0, "a@example.at")
	push := &fakePublisher{err: errors.New("channel closed")}

	res := run(t, f.sweeper(Options{Push: push}), false)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, res.Errors)
}

func TestRunDryRunHasNoSideEffects(t *testing.T) {
	f := newFixture()
	f.add(7, "a@example.at")
	f.add(5, "b@example.at")
	ledger := newMemLedger()
	push := &fakePublisher{}

	res := run(t, f.sweeper(Options{Ledger: ledger, Push: push}), true)
	assert.True(t, res.DryRun)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 0, res.Sent)
	assert.Len(t, res.Notifications, 1)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, ledger.marks)
	assert.Empty(t, push.events)
}

func TestResultSummary(t *testing.T) {
	r := &Result{Today: sweepDay, Checked: 3, Sent: 1, Skipped: 1, Errors: []string{"x"}}
	assert.Contains(t, r.Summary(), "today=2025-01-01 checked=3 sent=1")
	assert.Contains(t, r.Summary(), "errors=1")
}
