package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/augustalabs/summit-outreach/internal/config"
	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/repository"
)

// Outcome summarises one run of the worker pool. Durable state lives in the
// store; these counters only describe what this run did.
type Outcome struct {
	Planned         int
	Processed       int
	Sent            int
	FailedPermanent int
	FailedExhausted int
	Cancelled       bool
	StoreLost       bool
}

// Coordinator drains a resume plan using a fixed number of parallel lanes.
// Each lane owns a disjoint partition of the plan and processes it
// sequentially, so no attendee is ever touched by two lanes and the
// at-most-once invariant reduces to the store's status guard.
type Coordinator struct {
	store    repository.AttendeesRepository
	executor Executor
	messages MessageProvider
	cfg      config.PipelineConfig
}

// NewCoordinator wires a worker pool coordinator.
func NewCoordinator(store repository.AttendeesRepository, executor Executor, messages MessageProvider, cfg config.PipelineConfig) *Coordinator {
	return &Coordinator{store: store, executor: executor, messages: messages, cfg: cfg}
}

// Run partitions the plan by index modulo lane count and blocks until every
// lane drains, ctx is cancelled, or the store becomes unreachable. Ownership
// of an attendee is fixed at partition time for the whole run.
func (c *Coordinator) Run(ctx context.Context, plan []entity.Attendee) Outcome {
	lanes := c.cfg.Lanes
	if lanes <= 0 {
		lanes = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	parts := make([][]entity.Attendee, lanes)
	for i, attendee := range plan {
		parts[i%lanes] = append(parts[i%lanes], attendee)
	}

	results := make([]Outcome, lanes)
	var wg sync.WaitGroup
	for i := range parts {
		if len(parts[i]) == 0 {
			continue
		}
		wg.Add(1)
		go func(lane int, batch []entity.Attendee) {
			defer wg.Done()
			results[lane] = c.runLane(runCtx, cancel, lane, batch)
		}(i, parts[i])
	}
	wg.Wait()

	out := Outcome{Planned: len(plan), Cancelled: ctx.Err() != nil}
	for _, r := range results {
		out.Processed += r.Processed
		out.Sent += r.Sent
		out.FailedPermanent += r.FailedPermanent
		out.FailedExhausted += r.FailedExhausted
		out.Cancelled = out.Cancelled || r.Cancelled
		out.StoreLost = out.StoreLost || r.StoreLost
	}
	return out
}

// runLane processes the lane's partition sequentially. The lane has its own
// rate limiter and its own backoff timers, so one lane's delays never stall
// another.
func (c *Coordinator) runLane(ctx context.Context, abort context.CancelFunc, lane int, batch []entity.Attendee) Outcome {
	var out Outcome
	limiter := rate.NewLimiter(rate.Every(c.cfg.ActionDelay), 1)

	for i := range batch {
		if ctx.Err() != nil {
			out.Cancelled = true
			return out
		}

		attendee := batch[i]
		result := c.process(ctx, lane, attendee, limiter)
		out.Processed++

		switch result {
		case resultSent:
			out.Sent++
		case resultFailedPermanent:
			out.FailedPermanent++
		case resultFailedExhausted:
			out.FailedExhausted++
		case resultCancelled:
			out.Processed--
			out.Cancelled = true
			return out
		case resultStoreLost:
			out.Processed--
			out.StoreLost = true
			log.Printf("lane=%d aborting: store unreachable", lane)
			abort()
			return out
		}
	}
	return out
}

type processResult int

const commitTimeout = 10 * time.Second

// commitCtx detaches a bookkeeping write from run cancellation. A write that
// records an action already taken must land even while the run is winding
// down, or the next run's plan would repeat the action.
func commitCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
}

const (
	resultSent processResult = iota
	resultFailedPermanent
	resultFailedExhausted
	resultCancelled
	resultStoreLost
)

// process executes the per-attendee state machine. A failed act step retries
// from the extracted state; extraction is never repeated once its result is
// durably recorded.
func (c *Coordinator) process(ctx context.Context, lane int, attendee entity.Attendee, limiter *rate.Limiter) processResult {
	ref := ProfileRef{ProfileID: attendee.ProfileID, ProfileURL: attendee.ProfileURL}
	attempts := attendee.AttemptCount
	profile := attendee.ExtractedProfile()

	// A previously failed row resumes where it left off: attributes on disk
	// mean extraction already succeeded.
	extracted := attendee.Status == entity.StatusExtracted ||
		(attendee.Status == entity.StatusFailed && attendee.Name != nil)

	for {
		if ctx.Err() != nil {
			return resultCancelled
		}

		if !extracted {
			p, err := c.executor.Extract(ctx, ref)
			if err != nil {
				if done, result := c.recordFailure(ctx, lane, ref, StepExtract, err, &attempts); done {
					return result
				}
				continue
			}
			if err := c.store.UpdateExtracted(ctx, ref.ProfileID, p); err != nil {
				log.Printf("lane=%d profile=%s store write failed: %v", lane, ref.ProfileID, err)
				if !errors.Is(err, repository.ErrAttendeeNotFound) {
					return resultStoreLost
				}
			}
			profile = p
			extracted = true
			log.Printf("lane=%d profile=%s extracted name=%q", lane, ref.ProfileID, p.Name)
		}

		message, err := c.messages.Compose(ctx, profile)
		if err != nil {
			if done, result := c.recordFailure(ctx, lane, ref, StepCompose, err, &attempts); done {
				return result
			}
			continue
		}

		// The lane's minimum inter-action delay, honoured right before the
		// irreversible call.
		if err := limiter.Wait(ctx); err != nil {
			return resultCancelled
		}
		if ctx.Err() != nil {
			return resultCancelled
		}

		if err := c.executor.Act(ctx, ref, message); err != nil {
			if done, result := c.recordFailure(ctx, lane, ref, StepAct, err, &attempts); done {
				return result
			}
			continue
		}

		writeCtx, done := commitCtx(ctx)
		err = c.store.MarkSent(writeCtx, ref.ProfileID)
		done()
		if err != nil {
			log.Printf("lane=%d profile=%s store write failed after act: %v", lane, ref.ProfileID, err)
			if !errors.Is(err, repository.ErrAttendeeNotFound) {
				return resultStoreLost
			}
		}
		log.Printf("lane=%d profile=%s meeting request sent", lane, ref.ProfileID)
		return resultSent
	}
}

// recordFailure classifies a step failure and updates durable retry
// bookkeeping. It returns done=false when the caller should retry the step
// after the backoff sleep; permanent failures never consume an attempt slot.
func (c *Coordinator) recordFailure(ctx context.Context, lane int, ref ProfileRef, step Step, err error, attempts *int) (bool, processResult) {
	// A step abandoned because the run is being cancelled is not a failure:
	// the row keeps its state and resumes in the next run's plan.
	if ctx.Err() != nil {
		return true, resultCancelled
	}

	f := classify(step, err)

	writeCtx, done := commitCtx(ctx)
	defer done()

	if f.Permanent {
		log.Printf("lane=%d profile=%s permanent failure: %v", lane, ref.ProfileID, f)
		if storeErr := c.store.MarkFailed(writeCtx, ref.ProfileID, f.Error(), true, *attempts); storeErr != nil {
			log.Printf("lane=%d profile=%s store write failed: %v", lane, ref.ProfileID, storeErr)
			if !errors.Is(storeErr, repository.ErrAttendeeNotFound) {
				return true, resultStoreLost
			}
		}
		return true, resultFailedPermanent
	}

	*attempts++
	if *attempts >= c.cfg.MaxRetries {
		log.Printf("lane=%d profile=%s retries exhausted after %d attempts: %v", lane, ref.ProfileID, *attempts, f)
		if storeErr := c.store.MarkFailed(writeCtx, ref.ProfileID, f.Error(), false, *attempts); storeErr != nil {
			log.Printf("lane=%d profile=%s store write failed: %v", lane, ref.ProfileID, storeErr)
			if !errors.Is(storeErr, repository.ErrAttendeeNotFound) {
				return true, resultStoreLost
			}
		}
		return true, resultFailedExhausted
	}

	// Commit the attempt before sleeping so a crash mid-backoff never grants
	// extra attempts.
	if storeErr := c.store.RecordAttempt(writeCtx, ref.ProfileID, *attempts, f.Error()); storeErr != nil {
		log.Printf("lane=%d profile=%s store write failed: %v", lane, ref.ProfileID, storeErr)
		if !errors.Is(storeErr, repository.ErrAttendeeNotFound) {
			return true, resultStoreLost
		}
	}

	log.Printf("lane=%d profile=%s attempt=%d retrying after backoff: %v", lane, ref.ProfileID, *attempts, f)
	if sleepErr := sleepCtx(ctx, backoffDelay(c.cfg.RetryBaseDelay, c.cfg.RetryMultiplier, *attempts-1)); sleepErr != nil {
		return true, resultCancelled
	}
	return false, 0
}
