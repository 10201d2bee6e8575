package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/DUBIX17/dubix-stt3/internal/audio"
	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/events"
	"github.com/DUBIX17/dubix-stt3/internal/metrics"
	"github.com/DUBIX17/dubix-stt3/internal/repository"
	"github.com/DUBIX17/dubix-stt3/internal/transcriber"
	"github.com/DUBIX17/dubix-stt3/internal/transcript"
	"github.com/google/uuid"
)

const (
	FinalizeReasonSilence  = "silence_timeout"
	FinalizeReasonManual   = "manual_request"
	FinalizeReasonShutdown = "shutdown_drain"

	sweepInterval = 250 * time.Millisecond
)

type ChunkAck struct {
	SessionID string
	Loudness  float64
	Active    bool
	Finalized bool
}

type Manager struct {
	cfg         *config.Config
	store       *Store
	transcripts *transcript.Store
	transcriber transcriber.Transcriber
	repo        repository.Repository
	events      events.Publisher
	metrics     *metrics.Metrics

	silenceTimeout time.Duration
}

func NewManager(
	cfg *config.Config,
	store *Store,
	transcripts *transcript.Store,
	stt transcriber.Transcriber,
	repo repository.Repository,
	publisher events.Publisher,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		cfg:            cfg,
		store:          store,
		transcripts:    transcripts,
		transcriber:    stt,
		repo:           repo,
		events:         publisher,
		metrics:        m,
		silenceTimeout: time.Duration(cfg.SilenceTimeoutMS) * time.Millisecond,
	}
}

func NormalizeID(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}

func (m *Manager) IngestChunk(id string, sampleRate int, chunk []byte) ChunkAck {
	id = NormalizeID(id)
	loudness := audio.Loudness(chunk)
	active := audio.IsActive(loudness)
	now := time.Now()

	var timedOut bool
	var class string
	created := m.store.Upsert(id, sampleRate, now, func(s *Session) {
		switch {
		case active:
			s.AudioChunks = append(s.AudioChunks, chunk)
			s.LastActivityAt = now
			// The warm-up clock trusts each chunk's declared rate even
			// though the session transcribes at its creation rate, so a
			// caller switching rates mid-session skews the accounting
			// along with the audio itself.
			s.ActiveAudioDurationMS += audio.DurationMS(len(chunk), sampleRate)
			if s.ActiveAudioDurationMS >= warmUpActiveMS {
				s.HasSpokenEnough = true
			}
			class = metrics.ChunkClassActive
		case !s.HasSpokenEnough:
			s.AudioChunks = append(s.AudioChunks, chunk)
			s.LastActivityAt = now
			class = metrics.ChunkClassRetained
		default:
			class = metrics.ChunkClassDiscarded
		}
		timedOut = s.silentFor(now, m.silenceTimeout)
	})

	if created {
		m.metrics.ActiveSessions.Inc()
		slog.Info("session created", "session_id", id, "sample_rate", sampleRate)
	}
	m.metrics.ChunksReceived.WithLabelValues(class).Inc()
	slog.Debug("chunk ingested",
		"session_id", id,
		"bytes", len(chunk),
		"loudness", loudness,
		"class", class)

	finalized := false
	if timedOut {
		finalized = m.finalizeSilent(id, now)
	}

	return ChunkAck{
		SessionID: id,
		Loudness:  loudness,
		Active:    active,
		Finalized: finalized,
	}
}

func (m *Manager) Finalize(id string) bool {
	id = NormalizeID(id)
	sess, ok := m.store.Remove(id)
	if !ok {
		return false
	}
	m.finalize(sess, FinalizeReasonManual)
	return true
}

func (m *Manager) FinalizeAll(reason string) int {
	count := 0
	for _, id := range m.store.IDs() {
		sess, ok := m.store.Remove(id)
		if !ok {
			continue
		}
		m.finalize(sess, reason)
		count++
	}
	if count > 0 {
		slog.Info("drained sessions", "count", count, "reason", reason)
	}
	return count
}

func (m *Manager) SessionCount() int {
	return m.store.Len()
}

// Run sweeps for sessions whose silence timeout elapsed without further
// chunks arriving and finalizes them. It blocks until ctx is canceled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	slog.Info("silence sweeper started",
		"interval", sweepInterval.String(),
		"silence_timeout_ms", m.cfg.SilenceTimeoutMS)
	for {
		select {
		case <-ctx.Done():
			slog.Info("silence sweeper stopped")
			return
		case now := <-ticker.C:
			for _, id := range m.store.SilentIDs(now, m.silenceTimeout) {
				m.finalizeSilent(id, now)
			}
		}
	}
}

func (m *Manager) finalizeSilent(id string, now time.Time) bool {
	sess, ok := m.store.RemoveIfSilent(id, now, m.silenceTimeout)
	if !ok {
		return false
	}
	m.finalize(sess, FinalizeReasonSilence)
	return true
}

func (m *Manager) finalize(sess *Session, reason string) {
	ctx := context.Background()
	m.metrics.ActiveSessions.Dec()

	correlationID := uuid.NewString()
	pcm := sess.concatAudio()
	finalizedAt := time.Now()
	sessionDurationMS := finalizedAt.Sub(sess.CreatedAt).Milliseconds()

	slog.Info("finalizing session",
		"session_id", sess.ID,
		"correlation_id", correlationID,
		"reason", reason,
		"chunks", len(sess.AudioChunks),
		"audio_bytes", len(pcm),
		"active_audio_ms", sess.ActiveAudioDurationMS,
		"session_duration_ms", sessionDurationMS)

	text := ""
	transcribed := false
	result := metrics.ResultEmpty
	if len(pcm) > 0 {
		scratchPath := m.stageScratch(sess.ID, pcm, sess.SampleRate)
		defer func() { m.releaseScratch(scratchPath) }()

		start := time.Now()
		got, err := m.transcriber.Transcribe(ctx, transcriber.Request{
			Audio:      pcm,
			SampleRate: sess.SampleRate,
			Model:      m.cfg.TranscribeModel,
			Language:   m.cfg.TranscribeLanguage,
		})
		m.metrics.TranscribeSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			slog.Error("transcription failed, storing empty transcript",
				"error", err,
				"session_id", sess.ID,
				"correlation_id", correlationID)
			result = metrics.ResultProviderError
		} else {
			text = got
			transcribed = true
			if text != "" {
				result = metrics.ResultOK
			}
		}

		m.transcripts.Put(sess.ID, text)
		slog.Info("transcript stored",
			"session_id", sess.ID,
			"correlation_id", correlationID,
			"chars", len(text))

		if m.keepUtteranceDump(scratchPath, sess.ID, correlationID) {
			scratchPath = ""
		}
	} else {
		slog.Info("no audio buffered, skipping transcription",
			"session_id", sess.ID,
			"correlation_id", correlationID,
			"reason", reason)
	}
	m.metrics.FinalizeTotal.WithLabelValues(reason, result).Inc()

	if err := m.repo.SaveUtterance(ctx, repository.UtteranceRecord{
		SessionID:         sess.ID,
		CorrelationID:     correlationID,
		Reason:            reason,
		SampleRate:        sess.SampleRate,
		ChunkCount:        len(sess.AudioChunks),
		AudioBytes:        len(pcm),
		ActiveAudioMS:     sess.ActiveAudioDurationMS,
		SessionDurationMS: sessionDurationMS,
		TranscriptChars:   len(text),
		TranscribeOK:      transcribed,
		FinalizedAt:       finalizedAt,
	}); err != nil {
		slog.Error("failed to archive utterance",
			"error", err,
			"session_id", sess.ID,
			"correlation_id", correlationID)
	}

	if err := m.events.PublishUtteranceFinalized(ctx, events.UtteranceFinalized{
		SessionID:         sess.ID,
		CorrelationID:     correlationID,
		Reason:            reason,
		SampleRate:        sess.SampleRate,
		ChunkCount:        len(sess.AudioChunks),
		AudioBytes:        len(pcm),
		ActiveAudioMS:     sess.ActiveAudioDurationMS,
		SessionDurationMS: sessionDurationMS,
		TranscriptChars:   len(text),
		TranscribeOK:      transcribed,
		FinalizedAt:       finalizedAt,
	}); err != nil {
		slog.Error("failed to publish finalize event",
			"error", err,
			"session_id", sess.ID,
			"correlation_id", correlationID)
	}
}

func (m *Manager) stageScratch(id string, pcm []byte, sampleRate int) string {
	f, err := os.CreateTemp("", "utterance-*.wav")
	if err != nil {
		slog.Warn("failed to create scratch file", "error", err, "session_id", id)
		return ""
	}
	if _, err := f.Write(audio.EncodeWAV(pcm, sampleRate)); err != nil {
		slog.Warn("failed to write scratch file", "error", err, "session_id", id, "path", f.Name())
	}
	if err := f.Close(); err != nil {
		slog.Warn("failed to close scratch file", "error", err, "path", f.Name())
	}
	return f.Name()
}

func (m *Manager) releaseScratch(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove scratch file", "error", err, "path", path)
	}
}

// keepUtteranceDump reports whether it claimed the scratch file; the caller
// must not release a claimed file.
func (m *Manager) keepUtteranceDump(scratchPath, sessionID, correlationID string) bool {
	if m.cfg.AudioDumpDir == "" || scratchPath == "" {
		return false
	}
	dest := filepath.Join(m.cfg.AudioDumpDir, fmt.Sprintf("utterance-%s.wav", correlationID))
	if err := os.Rename(scratchPath, dest); err != nil {
		slog.Warn("failed to keep utterance dump",
			"error", err,
			"session_id", sessionID,
			"path", dest)
		return false
	}
	slog.Info("utterance dump kept",
		"session_id", sessionID,
		"correlation_id", correlationID,
		"path", dest)
	return true
}
