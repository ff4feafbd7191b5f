package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jrmarot/bidhouse/internal/auction"
)

// TickService applies due time-based lifecycle transitions.
type TickService interface {
	Tick(ctx context.Context, now time.Time) (started, ended int, err error)
}

// ScheduleService reports the lifecycle schedule for operators.
type ScheduleService interface {
	Schedule(ctx context.Context) (auction.ScheduleStatus, error)
}

// CronHandler serves the externally-driven tick endpoint and its status
// companion, for deployments that trigger transitions from an external
// scheduler instead of the in-process sweeper.
type CronHandler struct {
	ticks    TickService
	schedule ScheduleService
	logger   *slog.Logger

	now func() time.Time
}

// NewCronHandler creates a CronHandler.
func NewCronHandler(ticks TickService, schedule ScheduleService, logger *slog.Logger) *CronHandler {
	return &CronHandler{
		ticks:    ticks,
		schedule: schedule,
		logger:   logHandler(logger, "cron"),
		now:      time.Now,
	}
}

// Tick applies every due start and end transition.
// POST /api/cron/tick
func (h *CronHandler) Tick(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	started, ended, err := h.ticks.Tick(r.Context(), now)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "tick failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cron tick failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "cron tick completed",
		"timestamp": now.UTC().Format(time.RFC3339),
		"results": map[string]int{
			"auctionsStarted": started,
			"auctionsEnded":   ended,
		},
	})
}

// Status reports per-status counts, the next scheduled auction, and auctions
// ending within the hour.
// GET /api/cron/status
func (h *CronHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, err := h.schedule.Schedule(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "schedule status failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to get schedule status")
		return
	}
	writeJSON(w, http.StatusOK, s)
}
