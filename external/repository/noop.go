package repository

import (
	"context"
	"log/slog"

	"github.com/DUBIX17/dubix-stt3/internal/repository"
)

type NoopRepository struct{}

func NewNoopRepository() repository.Repository {
	return &NoopRepository{}
}

func (r *NoopRepository) SaveUtterance(_ context.Context, record repository.UtteranceRecord) error {
	slog.Debug("utterance archive disabled, dropping record",
		"session_id", record.SessionID,
		"correlation_id", record.CorrelationID)
	return nil
}
