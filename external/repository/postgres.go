package repository

import (
	"context"

	"github.com/DUBIX17/dubix-stt3/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) SaveUtterance(ctx context.Context, record repository.UtteranceRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO utterances (
			session_id, correlation_id, reason, sample_rate, chunk_count,
			audio_bytes, active_audio_ms, session_duration_ms, transcript_chars,
			transcribe_ok, finalized_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.SessionID, record.CorrelationID, record.Reason, record.SampleRate,
		record.ChunkCount, record.AudioBytes, record.ActiveAudioMS,
		record.SessionDurationMS, record.TranscriptChars, record.TranscribeOK,
		record.FinalizedAt)
	return err
}
