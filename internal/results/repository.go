// Package results archives finished matches in Postgres.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cooldown-chess/internal/record"
)

const schema = `CREATE TABLE IF NOT EXISTS cooldown_matches (
    match_id    TEXT PRIMARY KEY,
    session_key TEXT NOT NULL,
    white_id    TEXT NOT NULL DEFAULT '',
    black_id    TEXT NOT NULL DEFAULT '',
    winner      TEXT NOT NULL DEFAULT '',
    result      TEXT NOT NULL DEFAULT '*',
    moves       JSONB NOT NULL DEFAULT '[]',
    move_count  INTEGER NOT NULL DEFAULT 0,
    final_fen   TEXT NOT NULL DEFAULT '',
    started_at  TIMESTAMPTZ,
    ended_at    TIMESTAMPTZ,
    duration_ms BIGINT NOT NULL DEFAULT 0
)`

type Repository struct {
	db *sql.DB
}

// Open connects to DATABASE_URL, checks the connection and ensures the table exists.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	r := &Repository{db: db}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewRepository wraps an existing pool.
func NewRepository(db *sql.DB) *Repository { return &Repository{db: db} }

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveResult upserts a finished match.
func (r *Repository) SaveResult(ctx context.Context, m *record.MatchResult) error {
	if r == nil || r.db == nil || m == nil {
		return nil
	}
	moves, err := json.Marshal(nonNil(m.Moves))
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	duration := m.EndedAt.Sub(m.StartedAt).Milliseconds()
	if duration < 0 || m.StartedAt.IsZero() {
		duration = 0
	}

	q := `INSERT INTO cooldown_matches (
        match_id, session_key, white_id, black_id, winner, result,
        moves, move_count, final_fen, started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
      ) ON CONFLICT (match_id) DO UPDATE SET
        session_key=EXCLUDED.session_key,
        white_id=EXCLUDED.white_id,
        black_id=EXCLUDED.black_id,
        winner=EXCLUDED.winner,
        result=EXCLUDED.result,
        moves=EXCLUDED.moves,
        move_count=EXCLUDED.move_count,
        final_fen=EXCLUDED.final_fen,
        started_at=EXCLUDED.started_at,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		m.MatchID, m.SessionKey, m.WhiteID, m.BlackID,
		strings.ToLower(strings.TrimSpace(m.Winner)), resultToken(m.Winner),
		string(moves), len(m.Moves), m.FinalFEN,
		nullTime(m.StartedAt), nullTime(m.EndedAt), duration,
	)
	return err
}

func (r *Repository) Name() string { return "results" }

func (r *Repository) Handle(ctx context.Context, ev record.Event) error {
	if ev.Kind != record.KindMatchFinished {
		return nil
	}
	return r.SaveResult(ctx, ev.Result)
}

// resultToken maps a winner color to the PGN result field.
func resultToken(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	default:
		return "*"
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
