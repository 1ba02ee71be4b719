package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/augustalabs/summit-outreach/internal/config"
	"github.com/augustalabs/summit-outreach/internal/dto"
	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/pipeline"
	"github.com/augustalabs/summit-outreach/internal/repository"
)

// Run lifecycle errors surfaced to handlers.
var (
	ErrRunActive = errors.New("a run is already active")
	ErrNoRun     = errors.New("no run is active")
	ErrNoReport  = errors.New("no completed run to report on")
)

// Run phases reported through the status endpoint.
const (
	PhaseDiscovering = "discovering"
	PhaseProcessing  = "processing"
	PhaseDone        = "done"
)

type collector interface {
	Collect(ctx context.Context) (int, error)
}

type coordinator interface {
	Run(ctx context.Context, plan []entity.Attendee) pipeline.Outcome
}

// RunsService owns the run lifecycle: at most one run executes at a time,
// started in the background and cancellable from the API.
type RunsService struct {
	store       repository.AttendeesRepository
	collector   collector
	coordinator coordinator
	cfg         config.PipelineConfig

	mu       sync.Mutex
	status   dto.RunStatus
	cancel   context.CancelFunc
	report   *dto.RunReport
	finished chan struct{}
}

// NewRunsService constructs the run lifecycle service.
func NewRunsService(store repository.AttendeesRepository, collector collector, coordinator coordinator, cfg config.PipelineConfig) *RunsService {
	return &RunsService{
		store:       store,
		collector:   collector,
		coordinator: coordinator,
		cfg:         cfg,
	}
}

// Start launches a run in the background. It fails with ErrRunActive while a
// previous run is still executing.
func (s *RunsService) Start() (dto.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Active {
		return dto.RunStatus{}, ErrRunActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.finished = make(chan struct{})
	s.status = dto.RunStatus{
		RunID:     uuid.New().String(),
		Phase:     PhaseDiscovering,
		StartedAt: time.Now().UTC(),
		Active:    true,
	}

	go s.execute(ctx, s.status.RunID, s.status.StartedAt, s.finished)
	return s.status, nil
}

// Cancel stops the active run. The run winds down cooperatively; rows not
// yet acted on simply stay in the store for the next run.
func (s *RunsService) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.Active {
		return ErrNoRun
	}
	s.cancel()
	return nil
}

// Status returns the current (or most recent) run state.
func (s *RunsService) Status() dto.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Report returns the report of the last completed run.
func (s *RunsService) Report() (dto.RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return dto.RunReport{}, ErrNoReport
	}
	return *s.report, nil
}

// Wait blocks until the active run finishes. Used by graceful shutdown and
// tests; returns immediately when no run is executing.
func (s *RunsService) Wait() {
	s.mu.Lock()
	done := s.finished
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *RunsService) execute(ctx context.Context, runID string, startedAt time.Time, done chan struct{}) {
	defer close(done)
	log.Printf("run=%s started", runID)

	discovered, err := s.collector.Collect(ctx)
	if err != nil {
		log.Printf("run=%s discovery ended early: %v", runID, err)
	}

	s.setPhase(PhaseProcessing)

	var outcome pipeline.Outcome
	plan, err := pipeline.Plan(ctx, s.store, s.cfg.MaxRetries, s.cfg.PendingLimit)
	if err != nil {
		log.Printf("run=%s could not compute plan: %v", runID, err)
		outcome.StoreLost = ctx.Err() == nil
		outcome.Cancelled = ctx.Err() != nil
	} else {
		outcome = s.coordinator.Run(ctx, plan)
	}

	report := s.buildReport(runID, startedAt, discovered, outcome)

	s.mu.Lock()
	s.status.Phase = PhaseDone
	s.status.Active = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.report = &report
	s.mu.Unlock()

	log.Printf("run=%s finished sent=%d failed=%d cancelled=%t", runID, report.Sent, report.Failed, report.Cancelled)
}

func (s *RunsService) setPhase(phase string) {
	s.mu.Lock()
	s.status.Phase = phase
	s.mu.Unlock()
}

// buildReport combines the in-memory outcome with the durable failure rows,
// split into permanent failures and exhausted retries.
func (s *RunsService) buildReport(runID string, startedAt time.Time, discovered int, outcome pipeline.Outcome) dto.RunReport {
	report := dto.RunReport{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Discovered: discovered,
		Processed:  outcome.Processed,
		Sent:       outcome.Sent,
		Cancelled:  outcome.Cancelled,
	}

	reportCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if stats, err := s.store.Stats(reportCtx); err != nil {
		log.Printf("run=%s could not load stats for report: %v", runID, err)
	} else {
		report.Pending = stats.Pending
		report.Failed = stats.Failed
	}

	failed, err := s.store.Failed(reportCtx)
	if err != nil {
		log.Printf("run=%s could not load failures for report: %v", runID, err)
		return report
	}
	for _, a := range failed {
		entry := dto.FailedAttendee{
			ProfileID: a.ProfileID,
			Attempts:  a.AttemptCount,
			Permanent: a.Permanent,
		}
		if a.Name != nil {
			entry.Name = *a.Name
		}
		if a.LastError != nil {
			entry.LastError = *a.LastError
		}
		if a.Permanent {
			report.PermanentFailed = append(report.PermanentFailed, entry)
		} else {
			report.ExhaustedRetries = append(report.ExhaustedRetries, entry)
		}
	}
	return report
}
