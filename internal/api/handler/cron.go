package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/immowaechter/immowaechter/internal/api/respond"
	"github.com/immowaechter/immowaechter/internal/notifications"
)

// CronResponse is the summary returned to the external scheduler.
type CronResponse struct {
	Success       bool                   `json:"success"`
	Message       string                 `json:"message,omitempty"`
	Checked       *int                   `json:"checked,omitempty"`
	Sent          *int                   `json:"sent,omitempty"`
	Notifications []notifications.Record `json:"notifications,omitempty"`
	Errors        []string               `json:"errors,omitempty"`
}

// CheckMaintenance runs one reminder sweep. Authorization happens in the
// CronAuth middleware before this handler is reached.
// @Summary Run maintenance reminder sweep
// @Description Evaluates every active component due within 30 days (or overdue) and emails the owners whose reminder falls on today. Requires the shared cron secret as a bearer token.
// @Tags cron
// @Produce json
// @Security CronSecret
// @Param dry_run query bool false "Evaluate without sending"
// @Success 200 {object} CronResponse
// @Failure 401 {object} CronResponse
// @Failure 500 {object} CronResponse
// @Router /api/cron/check-maintenance [get]
func (h *Handler) CheckMaintenance(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))

	// Detached from the request: a caller that hangs up must not cancel the
	// records still to be sent.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), notifications.SweepTimeout)
	defer cancel()

	res, err := h.sweeper.Run(ctx, notifications.RunOptions{DryRun: dryRun})
	if err != nil {
		h.logger.Error("Maintenance sweep failed", "error", err)
		msg := "Internal server error"
		var fetchErr *notifications.FetchError
		if errors.As(err, &fetchErr) {
			msg = "Failed to fetch maintenance data: " + fetchErr.Err.Error()
		}
		respond.WriteJSONObject(w, http.StatusInternalServerError, CronResponse{
			Success: false,
			Message: msg,
		})
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, cronResponse(res))
}

func cronResponse(res *notifications.Result) CronResponse {
	out := CronResponse{
		Success:       true,
		Checked:       &res.Checked,
		Sent:          &res.Sent,
		Notifications: res.Notifications,
		Errors:        res.Errors,
	}
	switch {
	case res.Checked == 0:
		out.Message = "No upcoming maintenance"
	case res.DryRun:
		out.Message = "Dry run: no notifications sent"
	}
	return out
}
