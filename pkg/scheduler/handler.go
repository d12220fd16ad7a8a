package scheduler

import (
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/internal/rest"
)

type RunReportDTO struct {
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Processed  int              `json:"processed"`
	Succeeded  int              `json:"succeeded"`
	Skipped    int              `json:"skipped"`
	Failed     []PlanFailureDTO `json:"failed"`
}

type PlanFailureDTO struct {
	PlanId string `json:"planId"`
	Error  string `json:"error"`
}

func ReportToDTO(report RunReport) RunReportDTO {
	failed := make([]PlanFailureDTO, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, PlanFailureDTO{PlanId: f.PlanId, Error: f.Error})
	}
	return RunReportDTO{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Processed:  report.Processed,
		Succeeded:  report.Succeeded,
		Skipped:    report.Skipped,
		Failed:     failed,
	}
}

type Handler struct {
	trigger *Trigger
	history *RunHistory
}

func NewHandler(trigger *Trigger, history *RunHistory) *Handler {
	return &Handler{trigger: trigger, history: history}
}

// ListRuns godoc
// @Summary Recent scheduler runs, newest first
// @Tags Scheduler
// @Produce json
// @Success 200 {array} RunReportDTO
// @Router /scheduler/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	recent := h.history.Recent()
	dtos := make([]RunReportDTO, 0, len(recent))
	for _, report := range recent {
		dtos = append(dtos, ReportToDTO(report))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// RunNow godoc
// @Summary Run the recurring plan scheduler immediately
// @Tags Scheduler
// @Produce json
// @Success 200 {object} RunReportDTO
// @Failure 409 {object} rest.ErrorResponse "A run is already in progress"
// @Failure 503 {object} rest.ErrorResponse "Due plans could not be loaded"
// @Router /scheduler/run [post]
func (h *Handler) RunNow(w http.ResponseWriter, r *http.Request) {
	log.Info("Manual recurring run requested")
	report, err := h.trigger.Fire(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrLockHeld):
			rest.WriteError(w, http.StatusConflict, "A run is already in progress", err.Error())
		case errors.Is(err, ErrDuePlansUnavailable):
			rest.WriteError(w, http.StatusServiceUnavailable, "Due plans could not be loaded", err.Error())
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, ReportToDTO(report))
}
