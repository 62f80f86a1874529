package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immowaechter/immowaechter/internal/api/handler"
	"github.com/immowaechter/immowaechter/internal/cache"
	"github.com/immowaechter/immowaechter/internal/component"
	"github.com/immowaechter/immowaechter/internal/config"
	"github.com/immowaechter/immowaechter/internal/mail"
	"github.com/immowaechter/immowaechter/internal/notifications"
	"github.com/immowaechter/immowaechter/internal/risk"
)

const secret = "test-secret"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type countingSource struct {
	records  []component.DueRecord
	profiles map[uuid.UUID]*component.Profile
	fetchErr error
	calls    int
}

func (s *countingSource) DueComponents(ctx context.Context, _ time.Time) ([]component.DueRecord, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.records, s.fetchErr
}

func (s *countingSource) Profile(ctx context.Context, id uuid.UUID) (*component.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p, ok := s.profiles[id]; ok {
		return p, nil
	}
	return nil, component.ErrNotFound
}

type nopMailer struct{ sent int }

func (m *nopMailer) Send(ctx context.Context, _ mail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.sent++
	return nil
}

type fakeScorer struct {
	assessment risk.Assessment
	err        error
	calls      int
}

func (f *fakeScorer) Score(context.Context, uuid.UUID) (risk.Assessment, error) {
	f.calls++
	return f.assessment, f.err
}

type fakeDB struct{ err error }

func (d fakeDB) HealthCheck(context.Context) error { return d.err }

// --------------------------------------------------------------------------
// Setup
// --------------------------------------------------------------------------

type testServer struct {
	router http.Handler
	source *countingSource
	mailer *nopMailer
	scorer *fakeScorer
}

var today = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		source: &countingSource{profiles: map[uuid.UUID]*component.Profile{}},
		mailer: &nopMailer{},
		scorer: &fakeScorer{},
	}
	sweeper := notifications.NewSweeper(ts.source, ts.mailer, notifications.Options{
		From:   "ImmoWächter <erinnerung@immowaechter.at>",
		Logger: quiet,
		Now:    func() time.Time { return today.Add(9 * time.Hour) },
	})
	cfg := &config.Config{
		CORSAllowOrigins: []string{"http://localhost:3000"},
		CronSecret:       secret,
		MetricsEnabled:   true,
	}
	ts.router = NewRouter(handler.Deps{
		DB:      fakeDB{},
		Cache:   cache.New(true),
		Config:  cfg,
		Sweeper: sweeper,
		Scorer:  ts.scorer,
		Logger:  quiet,
	})
	return ts
}

func (ts *testServer) addDue(days int, email string) component.DueRecord {
	owner := uuid.New()
	due := today.AddDate(0, 0, days)
	rec := component.DueRecord{
		Component: component.Component{
			ID:              uuid.New(),
			IsActive:        true,
			NextMaintenance: &due,
			Interval:        &component.Interval{Category: "heating", ComponentLabel: "Gastherme", IntervalMonths: 12},
		},
		Property: &component.Property{ID: uuid.New(), OwnerID: owner, Name: "Wohnung"},
	}
	ts.source.profiles[owner] = &component.Profile{ID: owner, Email: email}
	ts.source.records = append(ts.source.records, rec)
	return rec
}

func (ts *testServer) get(path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// --------------------------------------------------------------------------
// Cron trigger
// --------------------------------------------------------------------------

func TestCronRejectsBadSecretBeforeFetching(t *testing.T) {
	ts := newTestServer(t)
	ts.addDue(7, "a@example.at")

	for _, header := range []map[string]string{nil, bearer("wrong")} {
		rec := ts.get("/api/cron/check-maintenance", header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	assert.Equal(t, 0, ts.source.calls)
	assert.Equal(t, 0, ts.mailer.sent)
}

func TestCronRunsSweep(t *testing.T) {
	ts := newTestServer(t)
	due := ts.addDue(7, "a@example.at")
	ts.addDue(9, "b@example.at")

	rec := ts.get("/api/cron/check-maintenance", bearer(secret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.source.calls)

	var body handler.CronResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.NotNil(t, body.Checked)
	assert.Equal(t, 2, *body.Checked)
	assert.Equal(t, 1, *body.Sent)
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, due.ID, body.Notifications[0].ComponentID)
	assert.Equal(t, "2025-01-08", body.Notifications[0].DueDate)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "errors")
}

func TestCronNothingDue(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/api/cron/check-maintenance", bearer(secret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"No upcoming maintenance","checked":0,"sent":0}`, rec.Body.String())
}

func TestCronFetchFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.source.fetchErr = errors.New("relation does not exist")

	rec := ts.get("/api/cron/check-maintenance", bearer(secret))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body handler.CronResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Message, "Failed to fetch maintenance data")
	assert.Contains(t, body.Message, "relation does not exist")
	assert.Equal(t, 1, strings.Count(body.Message, "fetch maintenance data"), body.Message)
	assert.Nil(t, body.Checked)
}

func TestCronSweepSurvivesCallerHangup(t *testing.T) {
	ts := newTestServer(t)
	ts.addDue(7, "a@example.at")
	ts.addDue(0, "b@example.at")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/cron/check-maintenance", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, ts.mailer.sent)

	var body handler.CronResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, *body.Sent)
	assert.Empty(t, body.Errors)
}

func TestCronDryRun(t *testing.T) {
	ts := newTestServer(t)
	ts.addDue(0, "a@example.at")

	rec := ts.get("/api/cron/check-maintenance?dry_run=true", bearer(secret))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, ts.mailer.sent)

	var body handler.CronResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, *body.Sent)
	assert.Len(t, body.Notifications, 1)
}

// --------------------------------------------------------------------------
// Risk score
// --------------------------------------------------------------------------

func TestRiskScoreInvalidID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/api/v1/properties/not-a-uuid/risk-score", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, ts.scorer.calls)
}

func TestRiskScoreUnknownProperty(t *testing.T) {
	ts := newTestServer(t)
	ts.scorer.err = component.ErrNotFound

	rec := ts.get("/api/v1/properties/"+uuid.NewString()+"/risk-score", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRiskScoreCachedWithETag(t *testing.T) {
	ts := newTestServer(t)
	updated := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	ts.scorer.assessment = risk.Assessment{Score: 0, MaxScore: 100, Level: "low", LastUpdated: updated}
	path := "/api/v1/properties/" + uuid.NewString() + "/risk-score"

	first := ts.get(path, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"success":true,"data":{"score":0,"maxScore":100,"level":"low",
		"criticalComponents":0,"legalComponents":0,"overdueMaintenances":0,"totalComponents":0,
		"lastUpdated":"2025-01-01T09:00:00Z"}}`, first.Body.String())

	second := ts.get(path, nil)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	third := ts.get(path, map[string]string{"If-None-Match": first.Header().Get("ETag")})
	assert.Equal(t, http.StatusNotModified, third.Code)
	assert.Equal(t, 1, ts.scorer.calls)
}

func TestRiskScoreInternalError(t *testing.T) {
	ts := newTestServer(t)
	ts.scorer.err = errors.New("boom")

	rec := ts.get("/api/v1/properties/"+uuid.NewString()+"/risk-score", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --------------------------------------------------------------------------
// Misc
// --------------------------------------------------------------------------

func TestRulesEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ReminderOffsets []int `json:"reminderOffsets"`
			LookaheadDays   int   `json:"lookaheadDays"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []int{30, 14, 7, 3, 1, 0}, body.Data.ReminderOffsets)
	assert.Equal(t, 30, body.Data.LookaheadDays)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusOK, ts.get("/health", nil).Code)
	assert.Equal(t, http.StatusOK, ts.get("/health/db", nil).Code)
	assert.Equal(t, http.StatusOK, ts.get("/health/cache", nil).Code)
	assert.Equal(t, http.StatusOK, ts.get("/metrics", nil).Code)
}

func TestHealthDBUnavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.router = NewRouter(handler.Deps{
		DB:     fakeDB{err: errors.New("connection refused")},
		Config: &config.Config{},
		Logger: quiet,
	})

	rec := ts.get("/health/db", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}
