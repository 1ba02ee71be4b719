// Package pipeline implements the resumable outreach workflow: discovery of
// attendee profiles, a durable per-attendee state machine, and a fixed pool of
// rate-limited worker lanes. All coordination happens through the attendee
// store; once a meeting request is recorded as sent, no later run ever
// submits it again.
package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/augustalabs/summit-outreach/internal/entity"
)

// ProfileRef identifies one attendee in the listing.
type ProfileRef struct {
	ProfileID  string `json:"profile_id"`
	ProfileURL string `json:"profile_url"`
}

// Lister produces one page of profile references at a time. An empty page
// signals the end of the listing.
type Lister interface {
	NextPage(ctx context.Context, page int) ([]ProfileRef, error)
}

// Executor performs extraction and the irreversible meeting request for one
// attendee. Errors should be *Failure values; untagged errors are treated as
// retryable.
type Executor interface {
	Extract(ctx context.Context, ref ProfileRef) (entity.Profile, error)
	Act(ctx context.Context, ref ProfileRef, message string) error
}

// MessageProvider turns extracted attributes into the request text. It must
// tolerate sparse profiles and still return a usable message.
type MessageProvider interface {
	Compose(ctx context.Context, profile entity.Profile) (string, error)
}

func backoffDelay(base time.Duration, multiplier float64, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return time.Duration(float64(base) * math.Pow(multiplier, float64(attempt)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
