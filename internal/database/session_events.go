package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// Querier is the subset of *pgxpool.Pool used by the repositories
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const sessionEventsSchema = `
	CREATE TABLE IF NOT EXISTS session_events (
		id           BIGSERIAL PRIMARY KEY,
		type         TEXT NOT NULL,
		session_id   TEXT NOT NULL,
		client_id    TEXT NOT NULL DEFAULT '',
		media_id     TEXT NOT NULL DEFAULT '',
		transcode_id TEXT NOT NULL DEFAULT '',
		detail       TEXT NOT NULL DEFAULT '',
		timestamp    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events (session_id, timestamp);
`

// SessionEventRepository stores the session lifecycle history
type SessionEventRepository struct {
	db Querier
}

// NewSessionEventRepository creates a repository on db
func NewSessionEventRepository(db Querier) *SessionEventRepository {
	return &SessionEventRepository{db: db}
}

// EnsureSchema creates the events table when missing
func (r *SessionEventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sessionEventsSchema); err != nil {
		return fmt.Errorf("failed to create session_events table: %w", err)
	}
	return nil
}

// Record inserts one event
func (r *SessionEventRepository) Record(ctx context.Context, event models.SessionEvent) error {
	start := time.Now()

	if event.Timestamp.IsZero() {
		event.Timestamp = start
	}

	query := `
		INSERT INTO session_events (type, session_id, client_id, media_id, transcode_id, detail, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		event.Type, event.SessionID, event.ClientID, event.MediaID,
		event.TranscodeID, event.Detail, event.Timestamp,
	)
	metrics.RecordDatabaseOperation("insert_session_event", status(err), time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to record session event: %w", err)
	}

	return nil
}

// ListBySession returns the events of one session, oldest first
func (r *SessionEventRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.SessionEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT type, session_id, client_id, media_id, transcode_id, detail, timestamp
		FROM session_events
		WHERE session_id = $1
		ORDER BY timestamp ASC, id ASC
		LIMIT $2
	`

	start := time.Now()
	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		metrics.RecordDatabaseOperation("list_session_events", "failed", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.SessionEvent])
	metrics.RecordDatabaseOperation("list_session_events", status(err), time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to scan session events: %w", err)
	}

	return events, nil
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
