package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS utterances (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id TEXT NOT NULL,
		correlation_id UUID NOT NULL,
		reason TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		audio_bytes BIGINT NOT NULL,
		active_audio_ms BIGINT NOT NULL,
		session_duration_ms BIGINT NOT NULL,
		transcript_chars INTEGER NOT NULL,
		transcribe_ok BOOLEAN NOT NULL,
		finalized_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances (session_id, finalized_at)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
