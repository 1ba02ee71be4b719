package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/augustalabs/summit-outreach/internal/dto"
	"github.com/augustalabs/summit-outreach/internal/entity"
)

// ErrAttendeeNotFound indicates the update matched no mutable row, either
// because the profile id is unknown or the row already reached action_sent.
var ErrAttendeeNotFound = errors.New("attendee not found")

// AttendeesRepository describes persistence operations for the outreach pipeline.
// All mutating calls are single statements, so a crash mid-write leaves the
// previous committed row intact.
type AttendeesRepository interface {
	UpsertDiscovered(ctx context.Context, profileID, profileURL string) (bool, error)
	Pending(ctx context.Context, maxRetries, limit int) ([]entity.Attendee, error)
	UpdateExtracted(ctx context.Context, profileID string, profile entity.Profile) error
	RecordAttempt(ctx context.Context, profileID string, attempts int, reason string) error
	MarkSent(ctx context.Context, profileID string) error
	MarkFailed(ctx context.Context, profileID, reason string, permanent bool, attempts int) error
	Stats(ctx context.Context) (entity.Stats, error)
	Failed(ctx context.Context) ([]entity.Attendee, error)
	List(ctx context.Context, filter dto.ListFilter) ([]entity.Attendee, error)
	GetByProfileID(ctx context.Context, profileID string) (*entity.Attendee, error)
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGXAttendeesRepository implements AttendeesRepository using pgx.
type PGXAttendeesRepository struct {
	pool pgxPool
}

// NewPGXAttendeesRepository wires a pgx backed repository.
func NewPGXAttendeesRepository(pool *pgxpool.Pool) *PGXAttendeesRepository {
	return &PGXAttendeesRepository{pool: pool}
}

var _ pgxPool = (*pgxpool.Pool)(nil)

const attendeeColumns = `
        id, profile_id, profile_url, name, badge, title, company, bio,
        location, industry, communities, status, attempt_count, last_error,
        permanent_failure, discovered_at, sent_at, updated_at`

// UpsertDiscovered inserts a freshly discovered profile. Re-discovery of a
// known id is a no-op so the row's status never regresses. Returns whether a
// new row was created.
func (r *PGXAttendeesRepository) UpsertDiscovered(ctx context.Context, profileID, profileURL string) (bool, error) {
	if profileID == "" {
		return false, fmt.Errorf("profile id must not be empty")
	}

	tag, err := r.pool.Exec(ctx, `
        INSERT INTO attendees (profile_id, profile_url)
        VALUES ($1, $2)
        ON CONFLICT (profile_id) DO NOTHING
    `, profileID, profileURL)
	if err != nil {
		return false, fmt.Errorf("upsert discovered attendee: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Pending returns the resume plan: every attendee still requiring work,
// oldest discovery first for fairness. Rows already at action_sent are never
// returned, which is what keeps the irreversible action at-most-once.
func (r *PGXAttendeesRepository) Pending(ctx context.Context, maxRetries, limit int) ([]entity.Attendee, error) {
	query := `
        SELECT ` + attendeeColumns + `
        FROM attendees
        WHERE status IN ('discovered', 'extracted')
           OR (status = 'action_failed' AND NOT permanent_failure AND attempt_count < $1)
        ORDER BY discovered_at ASC`
	args := []any{maxRetries}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending attendees: %w", err)
	}
	defer rows.Close()

	return scanAttendees(rows)
}

// UpdateExtracted stores extracted profile attributes and advances the row to
// the extracted status. Sent rows are left untouched.
func (r *PGXAttendeesRepository) UpdateExtracted(ctx context.Context, profileID string, profile entity.Profile) error {
	communities := profile.Communities
	if communities == nil {
		communities = []string{}
	}
	communitiesJSON, err := json.Marshal(communities)
	if err != nil {
		return fmt.Errorf("marshal communities: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
        UPDATE attendees SET
            name = $2,
            badge = $3,
            title = $4,
            company = $5,
            bio = $6,
            location = $7,
            industry = $8,
            communities = $9::jsonb,
            status = 'extracted',
            last_error = NULL,
            updated_at = NOW()
        WHERE profile_id = $1 AND status <> 'action_sent'
    `, profileID,
		nullable(profile.Name),
		nullable(profile.Badge),
		nullable(profile.Title),
		nullable(profile.Company),
		nullable(profile.Bio),
		nullable(profile.Location),
		nullable(profile.Industry),
		communitiesJSON,
	)
	if err != nil {
		return fmt.Errorf("update extracted attendee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

// RecordAttempt durably bumps the attempt counter before a retry is scheduled,
// so a crash during the backoff sleep does not grant extra attempts.
func (r *PGXAttendeesRepository) RecordAttempt(ctx context.Context, profileID string, attempts int, reason string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE attendees SET
            attempt_count = $2,
            last_error = $3,
            updated_at = NOW()
        WHERE profile_id = $1 AND status <> 'action_sent'
    `, profileID, attempts, reason)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

// MarkSent records the irreversible action outcome. The status guard makes the
// call idempotent: a second mark on an already sent row matches nothing.
func (r *PGXAttendeesRepository) MarkSent(ctx context.Context, profileID string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE attendees SET
            status = 'action_sent',
            last_error = NULL,
            permanent_failure = FALSE,
            sent_at = NOW(),
            updated_at = NOW()
        WHERE profile_id = $1 AND status <> 'action_sent'
    `, profileID)
	if err != nil {
		return fmt.Errorf("mark attendee sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

// MarkFailed records a failed outcome with its classification. Permanent
// failures keep their attempt count as-is so the report can tell them apart
// from retry exhaustion.
func (r *PGXAttendeesRepository) MarkFailed(ctx context.Context, profileID, reason string, permanent bool, attempts int) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE attendees SET
            status = 'action_failed',
            last_error = $2,
            permanent_failure = $3,
            attempt_count = $4,
            updated_at = NOW()
        WHERE profile_id = $1 AND status <> 'action_sent'
    `, profileID, reason, permanent, attempts)
	if err != nil {
		return fmt.Errorf("mark attendee failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttendeeNotFound
	}
	return nil
}

// Stats aggregates counts by pipeline outcome, computed from row statuses on
// demand rather than from in-memory counters.
func (r *PGXAttendeesRepository) Stats(ctx context.Context) (entity.Stats, error) {
	var stats entity.Stats
	err := r.pool.QueryRow(ctx, `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'action_sent'),
            COUNT(*) FILTER (WHERE status IN ('discovered', 'extracted')),
            COUNT(*) FILTER (WHERE status = 'action_failed'),
            COUNT(*) FILTER (WHERE status = 'action_failed' AND permanent_failure)
        FROM attendees
    `).Scan(&stats.Total, &stats.Sent, &stats.Pending, &stats.Failed, &stats.Permanent)
	if err != nil {
		return entity.Stats{}, fmt.Errorf("query attendee stats: %w", err)
	}
	return stats, nil
}

// Failed lists failed attendees for the run report, permanent failures first.
func (r *PGXAttendeesRepository) Failed(ctx context.Context) ([]entity.Attendee, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+attendeeColumns+`
        FROM attendees
        WHERE status = 'action_failed'
        ORDER BY permanent_failure DESC, updated_at ASC
    `)
	if err != nil {
		return nil, fmt.Errorf("query failed attendees: %w", err)
	}
	defer rows.Close()

	return scanAttendees(rows)
}

// List retrieves attendees matching the provided filter, newest first.
func (r *PGXAttendeesRepository) List(ctx context.Context, filter dto.ListFilter) ([]entity.Attendee, error) {
	baseQuery := strings.Builder{}
	baseQuery.WriteString(`SELECT ` + attendeeColumns + ` FROM attendees`)

	clauses := make([]string, 0)
	args := make([]any, 0)
	idx := 1

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.Company != "" {
		clauses = append(clauses, fmt.Sprintf("company ILIKE $%d", idx))
		args = append(args, "%"+filter.Company+"%")
		idx++
	}
	if filter.Q != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR company ILIKE $%d OR title ILIKE $%d)", idx, idx, idx))
		args = append(args, "%"+filter.Q+"%")
		idx++
	}

	if len(clauses) > 0 {
		baseQuery.WriteString(" WHERE ")
		baseQuery.WriteString(strings.Join(clauses, " AND "))
	}

	baseQuery.WriteString(" ORDER BY discovered_at DESC")

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = dto.DefaultPerPage
	}
	if perPage > dto.MaxPerPage {
		perPage = dto.MaxPerPage
	}
	offset := (page - 1) * perPage
	baseQuery.WriteString(fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1))
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	return scanAttendees(rows)
}

// GetByProfileID fetches a single attendee by its stable identifier.
func (r *PGXAttendeesRepository) GetByProfileID(ctx context.Context, profileID string) (*entity.Attendee, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+attendeeColumns+`
        FROM attendees
        WHERE profile_id = $1
    `, profileID)
	if err != nil {
		return nil, fmt.Errorf("query attendee by profile id: %w", err)
	}
	defer rows.Close()

	attendees, err := scanAttendees(rows)
	if err != nil {
		return nil, err
	}
	if len(attendees) == 0 {
		return nil, ErrAttendeeNotFound
	}
	return &attendees[0], nil
}

func scanAttendees(rows pgx.Rows) ([]entity.Attendee, error) {
	var attendees []entity.Attendee
	for rows.Next() {
		var (
			a               entity.Attendee
			id              uuid.UUID
			name            sql.NullString
			badge           sql.NullString
			title           sql.NullString
			company         sql.NullString
			bio             sql.NullString
			location        sql.NullString
			industry        sql.NullString
			communitiesJSON []byte
			status          string
			lastError       sql.NullString
			sentAt          sql.NullTime
		)

		err := rows.Scan(
			&id,
			&a.ProfileID,
			&a.ProfileURL,
			&name,
			&badge,
			&title,
			&company,
			&bio,
			&location,
			&industry,
			&communitiesJSON,
			&status,
			&a.AttemptCount,
			&lastError,
			&a.Permanent,
			&a.DiscoveredAt,
			&sentAt,
			&a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendee row: %w", err)
		}

		a.ID = id
		a.Status = entity.Status(status)
		a.Name = nullStringPtr(name)
		a.Badge = nullStringPtr(badge)
		a.Title = nullStringPtr(title)
		a.Company = nullStringPtr(company)
		a.Bio = nullStringPtr(bio)
		a.Location = nullStringPtr(location)
		a.Industry = nullStringPtr(industry)
		a.LastError = nullStringPtr(lastError)
		if sentAt.Valid {
			ts := sentAt.Time
			a.SentAt = &ts
		}
		if len(communitiesJSON) > 0 {
			if err := json.Unmarshal(communitiesJSON, &a.Communities); err != nil {
				return nil, fmt.Errorf("unmarshal communities: %w", err)
			}
		}

		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return attendees, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullable(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
