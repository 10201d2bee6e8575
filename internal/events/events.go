package events

import (
	"context"
	"time"
)

type UtteranceFinalized struct {
	SessionID         string    `json:"session_id"`
	CorrelationID     string    `json:"correlation_id"`
	Reason            string    `json:"reason"`
	SampleRate        int       `json:"sample_rate"`
	ChunkCount        int       `json:"chunk_count"`
	AudioBytes        int       `json:"audio_bytes"`
	ActiveAudioMS     int64     `json:"active_audio_ms"`
	SessionDurationMS int64     `json:"session_duration_ms"`
	TranscriptChars   int       `json:"transcript_chars"`
	TranscribeOK      bool      `json:"transcribe_ok"`
	FinalizedAt       time.Time `json:"finalized_at"`
}

type Publisher interface {
	PublishUtteranceFinalized(ctx context.Context, event UtteranceFinalized) error
}
