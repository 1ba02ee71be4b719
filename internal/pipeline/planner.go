package pipeline

import (
	"context"
	"fmt"

	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/repository"
)

// Plan computes the resume plan: every attendee not terminally sent and, if
// previously failed, still inside the retry budget. The plan is taken once
// per run; it is the single gate deciding what the worker pool touches, so no
// per-entity status re-checks are needed mid-flight.
func Plan(ctx context.Context, store repository.AttendeesRepository, maxRetries, limit int) ([]entity.Attendee, error) {
	plan, err := store.Pending(ctx, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("compute resume plan: %w", err)
	}
	return plan, nil
}
