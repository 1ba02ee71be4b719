package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/augustalabs/summit-outreach/internal/dto"
	"github.com/augustalabs/summit-outreach/internal/repository"
	"github.com/augustalabs/summit-outreach/internal/service"
	"github.com/augustalabs/summit-outreach/internal/service/scoring"
)

// AttendeesHandler exposes read endpoints over the attendee store.
type AttendeesHandler struct {
	attendees *service.AttendeesService
}

// NewAttendeesHandler constructs an AttendeesHandler.
func NewAttendeesHandler(attendees *service.AttendeesService) *AttendeesHandler {
	return &AttendeesHandler{attendees: attendees}
}

// List handles GET /attendees requests.
func (h *AttendeesHandler) List(c echo.Context) error {
	filter := dto.ListFilter{
		Status:  strings.TrimSpace(c.QueryParam("status")),
		Q:       c.QueryParam("q"),
		Company: c.QueryParam("company"),
	}
	if page := c.QueryParam("page"); page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return Error(c, http.StatusBadRequest, "invalid page")
		}
		filter.Page = n
	}
	if perPage := c.QueryParam("per_page"); perPage != "" {
		n, err := strconv.Atoi(perPage)
		if err != nil || n < 1 {
			return Error(c, http.StatusBadRequest, "invalid per_page")
		}
		filter.PerPage = n
	}

	attendees, err := h.attendees.List(c.Request().Context(), filter)
	if err != nil {
		if strings.Contains(err.Error(), "invalid status") {
			return Error(c, http.StatusBadRequest, "invalid status filter")
		}
		return Error(c, http.StatusInternalServerError, "unable to list attendees")
	}
	return Success(c, http.StatusOK, "attendees", attendees)
}

// Get handles GET /attendees/:profile_id requests. The response includes an
// outreach priority score computed from the extracted profile.
func (h *AttendeesHandler) Get(c echo.Context) error {
	attendee, err := h.attendees.Get(c.Request().Context(), c.Param("profile_id"))
	if err != nil {
		if errors.Is(err, repository.ErrAttendeeNotFound) {
			return Error(c, http.StatusNotFound, "attendee not found")
		}
		return Error(c, http.StatusInternalServerError, "unable to load attendee")
	}
	return Success(c, http.StatusOK, "attendee", echo.Map{
		"attendee": attendee,
		"score":    scoring.Score(attendee.ExtractedProfile()),
	})
}

// Stats handles GET /attendees/stats requests.
func (h *AttendeesHandler) Stats(c echo.Context) error {
	stats, err := h.attendees.Stats(c.Request().Context())
	if err != nil {
		return Error(c, http.StatusInternalServerError, "unable to load stats")
	}
	return Success(c, http.StatusOK, "attendee stats", stats)
}
