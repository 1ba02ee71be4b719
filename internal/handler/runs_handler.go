package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/augustalabs/summit-outreach/internal/service"
)

// RunsHandler exposes the run lifecycle endpoints.
type RunsHandler struct {
	runs *service.RunsService
}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler(runs *service.RunsService) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// Start handles POST /runs requests.
func (h *RunsHandler) Start(c echo.Context) error {
	status, err := h.runs.Start()
	if err != nil {
		if errors.Is(err, service.ErrRunActive) {
			return Error(c, http.StatusConflict, "a run is already active")
		}
		return Error(c, http.StatusInternalServerError, "unable to start run")
	}
	return Success(c, http.StatusAccepted, "run started", status)
}

// Cancel handles POST /runs/cancel requests.
func (h *RunsHandler) Cancel(c echo.Context) error {
	if err := h.runs.Cancel(); err != nil {
		if errors.Is(err, service.ErrNoRun) {
			return Error(c, http.StatusConflict, "no run is active")
		}
		return Error(c, http.StatusInternalServerError, "unable to cancel run")
	}
	return Success(c, http.StatusOK, "run cancelling", nil)
}

// Status handles GET /runs/current requests.
func (h *RunsHandler) Status(c echo.Context) error {
	status := h.runs.Status()
	if status.RunID == "" {
		return Error(c, http.StatusNotFound, "no run has been started")
	}
	return Success(c, http.StatusOK, "run status", status)
}

// Report handles GET /runs/report requests.
func (h *RunsHandler) Report(c echo.Context) error {
	report, err := h.runs.Report()
	if err != nil {
		if errors.Is(err, service.ErrNoReport) {
			return Error(c, http.StatusNotFound, "no completed run yet")
		}
		return Error(c, http.StatusInternalServerError, "unable to load report")
	}
	return Success(c, http.StatusOK, "run report", report)
}
