package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	execs []execCall
	err   error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.err
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "media", SSLMode: "disable",
		MaxConns: 10, MinConns: 2,
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=media sslmode=disable pool_max_conns=10 pool_min_conns=2", dsn)
}

func TestRecord(t *testing.T) {
	db := &fakeQuerier{}
	repo := NewSessionEventRepository(db)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := repo.Record(context.Background(), models.SessionEvent{
		Type: models.SessionEventAdded, SessionID: "s1", ClientID: "tv", MediaID: "m1", Timestamp: ts,
	})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "INSERT INTO session_events")
	assert.Equal(t, []any{"added", "s1", "tv", "m1", "", "", ts}, db.execs[0].args)
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	db := &fakeQuerier{}
	repo := NewSessionEventRepository(db)

	require.NoError(t, repo.Record(context.Background(), models.SessionEvent{Type: "stopped", SessionID: "s1"}))
	ts, ok := db.execs[0].args[6].(time.Time)
	require.True(t, ok)
	assert.False(t, ts.IsZero())
}

func TestRepositoryErrors(t *testing.T) {
	db := &fakeQuerier{err: errors.New("connection reset")}
	repo := NewSessionEventRepository(db)
	ctx := context.Background()

	assert.ErrorContains(t, repo.EnsureSchema(ctx), "connection reset")
	assert.ErrorContains(t, repo.Record(ctx, models.SessionEvent{Type: "added"}), "connection reset")
	_, err := repo.ListBySession(ctx, "s1", 0)
	assert.ErrorContains(t, err, "connection reset")
}

// Runs against a real database when MEDIASTREAM_TEST_DATABASE_URL is set
func TestSessionEventsIntegration(t *testing.T) {
	url := os.Getenv("MEDIASTREAM_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Skipping integration test - requires database connection")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewSessionEventRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	sessionID := "it-" + strings.ReplaceAll(t.Name(), "/", "_") + "-" + time.Now().Format("150405.000000")
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, typ := range []string{models.SessionEventAdded, models.SessionEventStarted, models.SessionEventDeleted} {
		require.NoError(t, repo.Record(ctx, models.SessionEvent{
			Type: typ, SessionID: sessionID, Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := repo.ListBySession(ctx, sessionID, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.SessionEventAdded, events[0].Type)
	assert.Equal(t, models.SessionEventDeleted, events[2].Type)

	_, err = pool.Exec(ctx, "DELETE FROM session_events WHERE session_id = $1", sessionID)
	require.NoError(t, err)
}
