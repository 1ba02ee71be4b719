package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/augustalabs/summit-outreach/internal/dto"
	"github.com/augustalabs/summit-outreach/internal/entity"
)

type stubAttendeeRows struct {
	called bool
}

func (s *stubAttendeeRows) Close()                                       {}
func (s *stubAttendeeRows) Err() error                                   { return nil }
func (s *stubAttendeeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (s *stubAttendeeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (s *stubAttendeeRows) Next() bool {
	if s.called {
		return false
	}
	s.called = true
	return true
}

func (s *stubAttendeeRows) Scan(dest ...any) error {
	if !s.called {
		return errors.New("scan called before next")
	}
	id := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	discovered := time.Now()
	updated := discovered

	*dest[0].(*uuid.UUID) = id
	*dest[1].(*string) = "531171"
	*dest[2].(*string) = "https://attend.example.com/lis25/profiles/531171"
	*dest[3].(*sql.NullString) = sql.NullString{String: "Ada Lovelace", Valid: true}
	*dest[4].(*sql.NullString) = sql.NullString{String: "ATTENDEE", Valid: true}
	*dest[5].(*sql.NullString) = sql.NullString{String: "CTO", Valid: true}
	*dest[6].(*sql.NullString) = sql.NullString{String: "Analytical Engines Ltd", Valid: true}
	*dest[7].(*sql.NullString) = sql.NullString{String: "First programmer", Valid: true}
	*dest[8].(*sql.NullString) = sql.NullString{String: "London", Valid: true}
	*dest[9].(*sql.NullString) = sql.NullString{String: "software", Valid: true}
	*dest[10].(*[]byte) = []byte(`["Women in Tech"]`)
	*dest[11].(*string) = "extracted"
	*dest[12].(*int) = 1
	*dest[13].(*sql.NullString) = sql.NullString{String: "timeout", Valid: true}
	*dest[14].(*bool) = false
	*dest[15].(*time.Time) = discovered
	*dest[16].(*sql.NullTime) = sql.NullTime{}
	*dest[17].(*time.Time) = updated
	return nil
}

func (s *stubAttendeeRows) Values() ([]any, error) { return nil, nil }
func (s *stubAttendeeRows) RawValues() [][]byte    { return nil }
func (s *stubAttendeeRows) Conn() *pgx.Conn        { return nil }

// stubExecPool records statements and returns a canned command tag.
type stubExecPool struct {
	lastSQL  string
	lastArgs []any
	tag      pgconn.CommandTag
	execErr  error
}

func (p *stubExecPool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.lastSQL = sql
	p.lastArgs = args
	return p.tag, p.execErr
}

func (p *stubExecPool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.lastSQL = sql
	p.lastArgs = args
	return &stubAttendeeRows{}, nil
}

func (p *stubExecPool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	p.lastSQL = sql
	p.lastArgs = args
	return stubStatsRow{}
}

type stubStatsRow struct{}

func (stubStatsRow) Scan(dest ...any) error {
	*dest[0].(*int) = 10
	*dest[1].(*int) = 4
	*dest[2].(*int) = 3
	*dest[3].(*int) = 3
	*dest[4].(*int) = 1
	return nil
}

func TestUpsertDiscovered(t *testing.T) {
	pool := &stubExecPool{tag: pgconn.NewCommandTag("INSERT 0 1")}
	repo := &PGXAttendeesRepository{pool: pool}

	inserted, err := repo.UpsertDiscovered(context.Background(), "531171", "https://example.com/profiles/531171")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Fatalf("expected inserted=true for new row")
	}
	if !strings.Contains(pool.lastSQL, "ON CONFLICT (profile_id) DO NOTHING") {
		t.Fatalf("upsert must not overwrite existing rows: %s", pool.lastSQL)
	}

	t.Run("conflict is a no-op", func(t *testing.T) {
		pool.tag = pgconn.NewCommandTag("INSERT 0 0")
		inserted, err := repo.UpsertDiscovered(context.Background(), "531171", "https://example.com/profiles/531171")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inserted {
			t.Fatalf("expected inserted=false on conflict")
		}
	})

	t.Run("empty profile id rejected", func(t *testing.T) {
		if _, err := repo.UpsertDiscovered(context.Background(), "", "url"); err == nil {
			t.Fatalf("expected error for empty profile id")
		}
	})
}

func TestStatusGuards(t *testing.T) {
	pool := &stubExecPool{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := &PGXAttendeesRepository{pool: pool}
	ctx := context.Background()

	calls := []struct {
		name string
		call func() error
	}{
		{"UpdateExtracted", func() error {
			return repo.UpdateExtracted(ctx, "id", entity.Profile{Name: "Ada"})
		}},
		{"RecordAttempt", func() error { return repo.RecordAttempt(ctx, "id", 1, "timeout") }},
		{"MarkSent", func() error { return repo.MarkSent(ctx, "id") }},
		{"MarkFailed", func() error { return repo.MarkFailed(ctx, "id", "boom", true, 0) }},
	}

	for _, tc := range calls {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(pool.lastSQL, "status <> 'action_sent'") {
				t.Fatalf("%s must never touch sent rows: %s", tc.name, pool.lastSQL)
			}

			pool.tag = pgconn.NewCommandTag("UPDATE 0")
			if err := tc.call(); !errors.Is(err, ErrAttendeeNotFound) {
				t.Fatalf("expected ErrAttendeeNotFound for missing row, got %v", err)
			}
			pool.tag = pgconn.NewCommandTag("UPDATE 1")
		})
	}
}

func TestPendingQuery(t *testing.T) {
	pool := &stubExecPool{}
	repo := &PGXAttendeesRepository{pool: pool}

	attendees, err := repo.Pending(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attendees) != 1 {
		t.Fatalf("expected 1 attendee, got %d", len(attendees))
	}
	if !strings.Contains(pool.lastSQL, "attempt_count < $1") {
		t.Fatalf("pending must respect the retry cap: %s", pool.lastSQL)
	}
	if !strings.Contains(pool.lastSQL, "ORDER BY discovered_at ASC") {
		t.Fatalf("pending must be ordered oldest first: %s", pool.lastSQL)
	}
	if strings.Contains(pool.lastSQL, "LIMIT") {
		t.Fatalf("no limit clause expected when limit is 0: %s", pool.lastSQL)
	}

	t.Run("with limit", func(t *testing.T) {
		if _, err := repo.Pending(context.Background(), 3, 50); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(pool.lastSQL, "LIMIT $2") {
			t.Fatalf("expected limit clause: %s", pool.lastSQL)
		}
	})
}

func TestScanAttendees(t *testing.T) {
	attendees, err := scanAttendees(&stubAttendeeRows{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attendees) != 1 {
		t.Fatalf("expected 1 attendee, got %d", len(attendees))
	}
	a := attendees[0]
	if a.ProfileID != "531171" || a.Status != entity.StatusExtracted {
		t.Fatalf("unexpected attendee: %+v", a)
	}
	if a.Name == nil || *a.Name != "Ada Lovelace" {
		t.Fatalf("expected name to be set, got %+v", a.Name)
	}
	if len(a.Communities) != 1 || a.Communities[0] != "Women in Tech" {
		t.Fatalf("unexpected communities: %+v", a.Communities)
	}
	if a.AttemptCount != 1 || a.LastError == nil || *a.LastError != "timeout" {
		t.Fatalf("unexpected retry bookkeeping: %+v", a)
	}
	if a.SentAt != nil {
		t.Fatalf("sent_at should be nil for unsent rows")
	}

	profile := a.ExtractedProfile()
	if profile.Company != "Analytical Engines Ltd" || profile.Badge != "ATTENDEE" {
		t.Fatalf("unexpected rebuilt profile: %+v", profile)
	}
}

func TestStats(t *testing.T) {
	pool := &stubExecPool{}
	repo := &PGXAttendeesRepository{pool: pool}

	stats, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 10 || stats.Sent != 4 || stats.Pending != 3 || stats.Failed != 3 || stats.Permanent != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestListBuildsFilters(t *testing.T) {
	pool := &stubExecPool{}
	repo := &PGXAttendeesRepository{pool: pool}

	_, err := repo.List(context.Background(), dto.ListFilter{Status: "action_failed", Q: "ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(pool.lastSQL, "status = $1") || !strings.Contains(pool.lastSQL, "ILIKE $2") {
		t.Fatalf("unexpected filter clauses: %s", pool.lastSQL)
	}
	if !strings.Contains(pool.lastSQL, "LIMIT $3 OFFSET $4") {
		t.Fatalf("expected pagination clause: %s", pool.lastSQL)
	}
}

func TestListHonoursServicePageSize(t *testing.T) {
	// The service already bounds PerPage; the store must pass the bounded
	// value through instead of re-capping it lower.
	pool := &stubExecPool{}
	repo := &PGXAttendeesRepository{pool: pool}

	if _, err := repo.List(context.Background(), dto.ListFilter{Page: 1, PerPage: dto.MaxPerPage - 50}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.lastArgs) < 2 {
		t.Fatalf("expected limit and offset args, got %v", pool.lastArgs)
	}
	if got := pool.lastArgs[len(pool.lastArgs)-2]; got != dto.MaxPerPage-50 {
		t.Fatalf("page size %v was re-capped below the service contract", got)
	}
}
