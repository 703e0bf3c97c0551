package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"worker-proxy-server/models"

	_ "github.com/lib/pq"
)

// SessionArchive keeps finalized sessions beyond the in-memory ledger
type SessionArchive interface {
	ArchiveSession(ctx context.Context, session models.Session) error
	ListArchivedSessions(ctx context.Context, filter models.SessionFilter, limit int) ([]models.SessionSummary, error)
}

type DBService struct {
	db *sql.DB
}

var _ SessionArchive = (*DBService)(nil)

func NewDBService(host string, port int, user, password, dbname string) (*DBService, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DBService{db: db}, nil
}

func (s *DBService) Close() error {
	return s.db.Close()
}

// InitSchema creates tables if they don't exist
func (s *DBService) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS execution_sessions (
		id UUID PRIMARY KEY,
		kind VARCHAR(100) NOT NULL,
		status VARCHAR(40) NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		prompt_preview TEXT NOT NULL,
		response_preview TEXT NOT NULL,
		payload_hash VARCHAR(64),
		events JSONB,
		turns INTEGER NOT NULL DEFAULT 0,
		cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
		model VARCHAR(255),
		worker_session_id VARCHAR(255),
		parse_tier SMALLINT NOT NULL DEFAULT 0,
		action_count INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_execution_sessions_started_at ON execution_sessions(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_execution_sessions_status ON execution_sessions(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ArchiveSession upserts a finalized session
func (s *DBService) ArchiveSession(ctx context.Context, session models.Session) error {
	eventsJSON, err := json.Marshal(session.Events)
	if err != nil {
		return err
	}

	var workerSessionID sql.NullString
	if session.WorkerSessionID != nil {
		workerSessionID = sql.NullString{String: *session.WorkerSessionID, Valid: true}
	}
	var completedAt sql.NullTime
	if session.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *session.CompletedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_sessions (
			id, kind, status, started_at, completed_at, prompt_preview, response_preview,
			payload_hash, events, turns, cost_usd, model, worker_session_id, parse_tier,
			action_count, duration_ms, error_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			response_preview = EXCLUDED.response_preview,
			events = EXCLUDED.events,
			turns = EXCLUDED.turns,
			cost_usd = EXCLUDED.cost_usd,
			model = EXCLUDED.model,
			worker_session_id = EXCLUDED.worker_session_id,
			parse_tier = EXCLUDED.parse_tier,
			action_count = EXCLUDED.action_count,
			duration_ms = EXCLUDED.duration_ms,
			error_message = EXCLUDED.error_message
	`, session.ID, session.Kind, session.Status, session.StartedAt, completedAt,
		session.PromptPreview, session.ResponsePreview, session.PayloadHash, eventsJSON,
		session.Turns, session.CostUSD, session.Model, workerSessionID, session.ParseTier,
		session.ActionCount, session.DurationMs, session.Error)

	return err
}

// ListArchivedSessions returns archived sessions newest first
func (s *DBService) ListArchivedSessions(ctx context.Context, filter models.SessionFilter, limit int) ([]models.SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var status sql.NullString
	if filter.Status != "" {
		status = sql.NullString{String: filter.Status, Valid: true}
	}
	var since sql.NullTime
	if !filter.Since.IsZero() {
		since = sql.NullTime{Time: filter.Since, Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, started_at, completed_at, prompt_preview, response_preview,
			turns, cost_usd, model, jsonb_array_length(COALESCE(events, '[]'::jsonb)), duration_ms, error_message
		FROM execution_sessions
		WHERE ($1::text IS NULL OR status = $1)
			AND ($2::timestamptz IS NULL OR started_at >= $2)
		ORDER BY started_at DESC
		LIMIT $3
	`, status, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.SessionSummary{}
	for rows.Next() {
		var item models.SessionSummary
		var completedAt sql.NullTime
		var model, errorMessage sql.NullString
		var durationMs sql.NullInt64

		err := rows.Scan(&item.ID, &item.Kind, &item.Status, &item.StartedAt, &completedAt,
			&item.PromptPreview, &item.ResponsePreview, &item.Turns, &item.CostUSD, &model,
			&item.EventCount, &durationMs, &errorMessage)
		if err != nil {
			return nil, err
		}

		if completedAt.Valid {
			t := completedAt.Time.In(time.UTC)
			item.CompletedAt = &t
		}
		if model.Valid {
			item.Model = model.String
		}
		if durationMs.Valid {
			item.DurationMs = durationMs.Int64
		}
		if errorMessage.Valid {
			item.Error = errorMessage.String
		}

		sessions = append(sessions, item)
	}

	return sessions, rows.Err()
}
