package entity

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks how far an attendee has moved through the outreach pipeline.
type Status string

// Attendee statuses. A row only ever moves forward (or to StatusFailed);
// StatusSent is permanent and is never left once committed.
const (
	StatusDiscovered Status = "discovered"
	StatusExtracted  Status = "extracted"
	StatusSent       Status = "action_sent"
	StatusFailed     Status = "action_failed"
)

// Terminal reports whether the status ends processing for the current run.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// Profile holds the attributes extracted from an attendee's detail page.
type Profile struct {
	Name        string   `json:"name"`
	Badge       string   `json:"badge,omitempty"`
	Title       string   `json:"title,omitempty"`
	Company     string   `json:"company,omitempty"`
	Bio         string   `json:"bio,omitempty"`
	Location    string   `json:"location,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	Communities []string `json:"communities,omitempty"`
}

// Attendee represents one discovered conference attendee and the durable
// state of their meeting request.
type Attendee struct {
	ID           uuid.UUID  `json:"id"`
	ProfileID    string     `json:"profile_id"`
	ProfileURL   string     `json:"profile_url"`
	Name         *string    `json:"name,omitempty"`
	Badge        *string    `json:"badge,omitempty"`
	Title        *string    `json:"title,omitempty"`
	Company      *string    `json:"company,omitempty"`
	Bio          *string    `json:"bio,omitempty"`
	Location     *string    `json:"location,omitempty"`
	Industry     *string    `json:"industry,omitempty"`
	Communities  []string   `json:"communities,omitempty"`
	Status       Status     `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	LastError    *string    `json:"last_error,omitempty"`
	Permanent    bool       `json:"permanent_failure"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExtractedProfile rebuilds a Profile from the stored columns so the act
// step can run without re-visiting the detail page.
func (a *Attendee) ExtractedProfile() Profile {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return Profile{
		Name:        deref(a.Name),
		Badge:       deref(a.Badge),
		Title:       deref(a.Title),
		Company:     deref(a.Company),
		Bio:         deref(a.Bio),
		Location:    deref(a.Location),
		Industry:    deref(a.Industry),
		Communities: a.Communities,
	}
}

// Stats aggregates row counts by pipeline outcome.
type Stats struct {
	Total     int `json:"total"`
	Sent      int `json:"sent"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Permanent int `json:"permanent_failed"`
}
