package repository

import "time"

type UtteranceRecord struct {
	SessionID         string
	CorrelationID     string
	Reason            string
	SampleRate        int
	ChunkCount        int
	AudioBytes        int
	ActiveAudioMS     int64
	SessionDurationMS int64
	TranscriptChars   int
	TranscribeOK      bool
	FinalizedAt       time.Time
}
