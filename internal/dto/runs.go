package dto

import "time"

// RunStatus describes the currently executing (or most recent) run.
type RunStatus struct {
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	StartedAt time.Time `json:"started_at"`
	Active    bool      `json:"active"`
}

// FailedAttendee is one failed entity surfaced in the run report.
type FailedAttendee struct {
	ProfileID string `json:"profile_id"`
	Name      string `json:"name,omitempty"`
	LastError string `json:"last_error"`
	Attempts  int    `json:"attempts"`
	Permanent bool   `json:"permanent"`
}

// RunReport summarises the outcome of a completed run for operator review.
// Permanent failures are listed apart from retry-exhausted ones so the
// operator can tell "needs investigation" from "give it more attempts".
type RunReport struct {
	RunID            string           `json:"run_id"`
	StartedAt        time.Time        `json:"started_at"`
	FinishedAt       time.Time        `json:"finished_at"`
	Discovered       int              `json:"discovered"`
	Processed        int              `json:"processed"`
	Sent             int              `json:"sent"`
	Pending          int              `json:"pending"`
	Failed           int              `json:"failed"`
	PermanentFailed  []FailedAttendee `json:"permanent_failed"`
	ExhaustedRetries []FailedAttendee `json:"exhausted_retries"`
	Cancelled        bool             `json:"cancelled,omitempty"`
}
