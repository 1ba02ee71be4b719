package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/augustalabs/summit-outreach/internal/dto"
	"github.com/augustalabs/summit-outreach/internal/entity"
	"github.com/augustalabs/summit-outreach/internal/repository"
)

// memStore is an in-memory AttendeesRepository used by pipeline tests. It
// mirrors the SQL store's transition guards, including never touching rows
// already at action_sent.
type memStore struct {
	mu     sync.Mutex
	order  []string
	rows   map[string]*entity.Attendee
	broken bool
	clock  time.Time
}

var errStoreDown = errors.New("store down")

func newMemStore() *memStore {
	return &memStore{
		rows:  make(map[string]*entity.Attendee),
		clock: time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) seed(profileID string, status entity.Status, attempts int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &entity.Attendee{
		ID:           uuid.New(),
		ProfileID:    profileID,
		ProfileURL:   "https://attend.example.com/profiles/" + profileID,
		Status:       status,
		AttemptCount: attempts,
		DiscoveredAt: m.tick(),
		UpdatedAt:    m.clock,
	}
	if name != "" {
		n := name
		a.Name = &n
	}
	m.rows[profileID] = a
	m.order = append(m.order, profileID)
}

func (m *memStore) get(profileID string) entity.Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[profileID]
}

func (m *memStore) UpsertDiscovered(_ context.Context, profileID, profileURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return false, errStoreDown
	}
	if _, ok := m.rows[profileID]; ok {
		return false, nil
	}
	m.rows[profileID] = &entity.Attendee{
		ID:           uuid.New(),
		ProfileID:    profileID,
		ProfileURL:   profileURL,
		Status:       entity.StatusDiscovered,
		DiscoveredAt: m.tick(),
		UpdatedAt:    m.clock,
	}
	m.order = append(m.order, profileID)
	return true, nil
}

func (m *memStore) Pending(_ context.Context, maxRetries, limit int) ([]entity.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return nil, errStoreDown
	}
	var pending []entity.Attendee
	for _, id := range m.order {
		a := m.rows[id]
		eligible := a.Status == entity.StatusDiscovered || a.Status == entity.StatusExtracted ||
			(a.Status == entity.StatusFailed && !a.Permanent && a.AttemptCount < maxRetries)
		if !eligible {
			continue
		}
		pending = append(pending, *a)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (m *memStore) UpdateExtracted(ctx context.Context, profileID string, profile entity.Profile) error {
	// Writes fail once the context is dead, like the SQL pool's Exec.
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errStoreDown
	}
	a, ok := m.rows[profileID]
	if !ok || a.Status == entity.StatusSent {
		return repository.ErrAttendeeNotFound
	}
	set := func(v string) *string {
		if v == "" {
			return nil
		}
		return &v
	}
	a.Name = set(profile.Name)
	a.Badge = set(profile.Badge)
	a.Title = set(profile.Title)
	a.Company = set(profile.Company)
	a.Bio = set(profile.Bio)
	a.Location = set(profile.Location)
	a.Industry = set(profile.Industry)
	a.Communities = profile.Communities
	a.Status = entity.StatusExtracted
	a.LastError = nil
	a.UpdatedAt = m.tick()
	return nil
}

func (m *memStore) RecordAttempt(ctx context.Context, profileID string, attempts int, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errStoreDown
	}
	a, ok := m.rows[profileID]
	if !ok || a.Status == entity.StatusSent {
		return repository.ErrAttendeeNotFound
	}
	a.AttemptCount = attempts
	a.LastError = &reason
	a.UpdatedAt = m.tick()
	return nil
}

func (m *memStore) MarkSent(ctx context.Context, profileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errStoreDown
	}
	a, ok := m.rows[profileID]
	if !ok || a.Status == entity.StatusSent {
		return repository.ErrAttendeeNotFound
	}
	now := m.tick()
	a.Status = entity.StatusSent
	a.LastError = nil
	a.Permanent = false
	a.SentAt = &now
	a.UpdatedAt = now
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, profileID, reason string, permanent bool, attempts int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return errStoreDown
	}
	a, ok := m.rows[profileID]
	if !ok || a.Status == entity.StatusSent {
		return repository.ErrAttendeeNotFound
	}
	a.Status = entity.StatusFailed
	a.LastError = &reason
	a.Permanent = permanent
	a.AttemptCount = attempts
	a.UpdatedAt = m.tick()
	return nil
}

func (m *memStore) Stats(_ context.Context) (entity.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.broken {
		return entity.Stats{}, errStoreDown
	}
	var stats entity.Stats
	for _, a := range m.rows {
		stats.Total++
		switch a.Status {
		case entity.StatusSent:
			stats.Sent++
		case entity.StatusFailed:
			stats.Failed++
			if a.Permanent {
				stats.Permanent++
			}
		default:
			stats.Pending++
		}
	}
	return stats, nil
}

func (m *memStore) Failed(_ context.Context) ([]entity.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var failed []entity.Attendee
	for _, id := range m.order {
		if a := m.rows[id]; a.Status == entity.StatusFailed {
			failed = append(failed, *a)
		}
	}
	return failed, nil
}

func (m *memStore) List(_ context.Context, _ dto.ListFilter) ([]entity.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []entity.Attendee
	for _, id := range m.order {
		all = append(all, *m.rows[id])
	}
	return all, nil
}

func (m *memStore) GetByProfileID(_ context.Context, profileID string) (*entity.Attendee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[profileID]
	if !ok {
		return nil, repository.ErrAttendeeNotFound
	}
	copied := *a
	return &copied, nil
}

var _ repository.AttendeesRepository = (*memStore)(nil)
