package service

import (
	"context"
	"errors"
	"strings"

	"github.com/augustalabs/summit-outreach/internal/dto"
	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/repository"
)

// AttendeesService exposes read access to the attendee store for the API.
type AttendeesService struct {
	attendees repository.AttendeesRepository
}

// NewAttendeesService constructs a new AttendeesService.
func NewAttendeesService(attendees repository.AttendeesRepository) *AttendeesService {
	return &AttendeesService{attendees: attendees}
}

// List returns attendees matching the filter, with pagination defaults
// applied.
func (s *AttendeesService) List(ctx context.Context, filter dto.ListFilter) ([]entity.Attendee, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, errors.New("invalid status filter")
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = dto.DefaultPerPage
	}
	if filter.PerPage > dto.MaxPerPage {
		filter.PerPage = dto.MaxPerPage
	}
	filter.Q = strings.TrimSpace(filter.Q)
	filter.Company = strings.TrimSpace(filter.Company)

	return s.attendees.List(ctx, filter)
}

// Get returns a single attendee by profile identifier.
func (s *AttendeesService) Get(ctx context.Context, profileID string) (*entity.Attendee, error) {
	profileID = strings.TrimSpace(profileID)
	if profileID == "" {
		return nil, errors.New("profile id must not be empty")
	}
	return s.attendees.GetByProfileID(ctx, profileID)
}

// Stats returns the store-wide status counters.
func (s *AttendeesService) Stats(ctx context.Context) (entity.Stats, error) {
	return s.attendees.Stats(ctx)
}

func validStatus(status string) bool {
	switch entity.Status(status) {
	case entity.StatusDiscovered, entity.StatusExtracted, entity.StatusSent, entity.StatusFailed:
		return true
	}
	return false
}
