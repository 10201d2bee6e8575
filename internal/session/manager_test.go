package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DUBIX17/dubix-stt3/internal/config"
	"github.com/DUBIX17/dubix-stt3/internal/events"
	"github.com/DUBIX17/dubix-stt3/internal/metrics"
	"github.com/DUBIX17/dubix-stt3/internal/repository"
	"github.com/DUBIX17/dubix-stt3/internal/transcriber"
	"github.com/DUBIX17/dubix-stt3/internal/transcript"
	"github.com/prometheus/client_golang/prometheus"
)

type mockTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []transcriber.Request
}

func (m *mockTranscriber) Transcribe(_ context.Context, req transcriber.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockTranscriber) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockTranscriber) call(i int) transcriber.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

type mockRepository struct {
	mu      sync.Mutex
	saved   []repository.UtteranceRecord
	saveErr error
}

func (m *mockRepository) SaveUtterance(_ context.Context, record repository.UtteranceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, record)
	return m.saveErr
}

func (m *mockRepository) savedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *mockRepository) savedRecord(i int) repository.UtteranceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[i]
}

type mockPublisher struct {
	mu         sync.Mutex
	published  []events.UtteranceFinalized
	publishErr error
}

func (m *mockPublisher) PublishUtteranceFinalized(_ context.Context, event events.UtteranceFinalized) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	return m.publishErr
}

func (m *mockPublisher) publishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func newTestManager(stt *mockTranscriber, repo *mockRepository, publisher *mockPublisher) *Manager {
	cfg := &config.Config{
		Env:                "test",
		HTTPAddr:           ":0",
		SilenceTimeoutMS:   1200,
		TranscribeModel:    "latest_short",
		TranscribeLanguage: "en-US",
	}
	transcripts := transcript.NewStore(transcript.DefaultTTL)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	return NewManager(cfg, NewStore(), transcripts, stt, repo, publisher, m)
}

func toneChunk(rate, ms int, amplitude int16) []byte {
	samples := rate * ms / 1000
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

func activeChunk(ms int) []byte { return toneChunk(16000, ms, 8000) }
func silentChunk(ms int) []byte { return toneChunk(16000, ms, 0) }

func withSession(t *testing.T, store *Store, id string, fn func(*Session)) {
	t.Helper()
	sh := store.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sess, ok := sh.sessions[id]
	if !ok {
		t.Fatalf("session %q not found", id)
	}
	fn(sess)
}

func backdateActivity(t *testing.T, m *Manager, id string, by time.Duration) {
	t.Helper()
	withSession(t, m.store, id, func(s *Session) { s.LastActivityAt = s.LastActivityAt.Add(-by) })
}

func TestIngestChunk_CreatesSessionAndAcks(t *testing.T) {
	stt := &mockTranscriber{text: "hello"}
	manager := newTestManager(stt, &mockRepository{}, &mockPublisher{})

	ack := manager.IngestChunk("alpha", 16000, activeChunk(100))

	if ack.SessionID != "alpha" {
		t.Fatalf("unexpected session id: %q", ack.SessionID)
	}
	if !ack.Active {
		t.Fatal("expected chunk to be classified active")
	}
	if ack.Loudness <= 0.2 || ack.Loudness >= 0.3 {
		t.Fatalf("unexpected loudness: %f", ack.Loudness)
	}
	if ack.Finalized {
		t.Fatal("did not expect finalize on first chunk")
	}
	if manager.SessionCount() != 1 {
		t.Fatalf("expected one live session, got %d", manager.SessionCount())
	}
}

func TestIngestChunk_EmptyIDUsesDefault(t *testing.T) {
	manager := newTestManager(&mockTranscriber{}, &mockRepository{}, &mockPublisher{})

	ack := manager.IngestChunk("", 16000, activeChunk(100))

	if ack.SessionID != DefaultID {
		t.Fatalf("unexpected session id: %q", ack.SessionID)
	}
	withSession(t, manager.store, DefaultID, func(*Session) {})
}

func TestIngestChunk_AccumulatesActiveAudioUntilWarmUp(t *testing.T) {
	manager := newTestManager(&mockTranscriber{}, &mockRepository{}, &mockPublisher{})

	for i := 0; i < 3; i++ {
		manager.IngestChunk("alpha", 16000, activeChunk(500))
	}

	var durationMS int64
	var warm bool
	withSession(t, manager.store, "alpha", func(s *Session) {
		durationMS = s.ActiveAudioDurationMS
		warm = s.HasSpokenEnough
	})
	if durationMS != 1500 {
		t.Fatalf("unexpected active duration: %d", durationMS)
	}
	if warm {
		t.Fatal("did not expect warm-up before 2000ms of active audio")
	}

	manager.IngestChunk("alpha", 16000, activeChunk(500))
	withSession(t, manager.store, "alpha", func(s *Session) {
		durationMS = s.ActiveAudioDurationMS
		warm = s.HasSpokenEnough
	})
	if durationMS != 2000 || !warm {
		t.Fatalf("expected warm-up at 2000ms, got duration=%d warm=%v", durationMS, warm)
	}
}

func TestIngestChunk_RetainsSilenceBeforeWarmUp(t *testing.T) {
	manager := newTestManager(&mockTranscriber{}, &mockRepository{}, &mockPublisher{})

	ack := manager.IngestChunk("alpha", 16000, silentChunk(100))

	if ack.Active {
		t.Fatal("expected silent classification")
	}
	var chunks int
	var durationMS int64
	withSession(t, manager.store, "alpha", func(s *Session) {
		chunks = len(s.AudioChunks)
		durationMS = s.ActiveAudioDurationMS
	})
	if chunks != 1 {
		t.Fatalf("expected silent chunk to be retained, got %d chunks", chunks)
	}
	if durationMS != 0 {
		t.Fatalf("silence must not advance the warm-up clock, got %d", durationMS)
	}
}

func TestIngestChunk_DiscardsSilenceAfterWarmUp(t *testing.T) {
	manager := newTestManager(&mockTranscriber{}, &mockRepository{}, &mockPublisher{})
	manager.IngestChunk("alpha", 16000, activeChunk(2000))

	var before time.Time
	withSession(t, manager.store, "alpha", func(s *Session) { before = s.LastActivityAt })

	manager.IngestChunk("alpha", 16000, silentChunk(100))

	var after time.Time
	var chunks int
	withSession(t, manager.store, "alpha", func(s *Session) {
		after = s.LastActivityAt
		chunks = len(s.AudioChunks)
	})
	if chunks != 1 {
		t.Fatalf("expected silent chunk to be dropped, got %d chunks", chunks)
	}
	if !after.Equal(before) {
		t.Fatal("discarded silence must not refresh the activity timestamp")
	}
}

func TestIngestChunk_SilenceTimeoutFinalizes(t *testing.T) {
	stt := &mockTranscriber{text: "turn it off and on again"}
	repo := &mockRepository{}
	publisher := &mockPublisher{}
	manager := newTestManager(stt, repo, publisher)

	speech := activeChunk(2000)
	manager.IngestChunk("alpha", 16000, speech)
	backdateActivity(t, manager, "alpha", 2*time.Second)

	ack := manager.IngestChunk("alpha", 16000, silentChunk(100))

	if !ack.Finalized {
		t.Fatal("expected silence timeout to finalize the session")
	}
	if manager.SessionCount() != 0 {
		t.Fatalf("expected session to be removed, got %d live", manager.SessionCount())
	}
	if stt.callCount() != 1 {
		t.Fatalf("expected one transcription call, got %d", stt.callCount())
	}
	req := stt.call(0)
	if len(req.Audio) != len(speech) {
		t.Fatalf("unexpected audio size: %d", len(req.Audio))
	}
	if req.SampleRate != 16000 || req.Model != "latest_short" || req.Language != "en-US" {
		t.Fatalf("unexpected request: %+v", req)
	}

	text, ready := manager.transcripts.Get("alpha")
	if !ready || text != "turn it off and on again" {
		t.Fatalf("unexpected transcript: %q ready=%v", text, ready)
	}
	if repo.savedCount() != 1 {
		t.Fatalf("expected one archived utterance, got %d", repo.savedCount())
	}
	record := repo.savedRecord(0)
	if record.Reason != FinalizeReasonSilence || !record.TranscribeOK {
		t.Fatalf("unexpected record: %+v", record)
	}
	if publisher.publishedCount() != 1 {
		t.Fatalf("expected one finalize event, got %d", publisher.publishedCount())
	}
}

func TestFinalize_ConcatenatesChunksInArrivalOrder(t *testing.T) {
	stt := &mockTranscriber{text: "one two three"}
	manager := newTestManager(stt, &mockRepository{}, &mockPublisher{})

	first := toneChunk(16000, 800, 1000)
	second := toneChunk(16000, 800, 2000)
	third := toneChunk(16000, 800, 3000)
	manager.IngestChunk("alpha", 16000, first)
	manager.IngestChunk("alpha", 16000, second)
	manager.IngestChunk("alpha", 16000, third)
	backdateActivity(t, manager, "alpha", 2*time.Second)

	ack := manager.IngestChunk("alpha", 16000, silentChunk(100))

	if !ack.Finalized {
		t.Fatal("expected silence timeout to finalize the session")
	}
	if stt.callCount() != 1 {
		t.Fatalf("expected one transcription call, got %d", stt.callCount())
	}
	want := append(append(append([]byte{}, first...), second...), third...)
	if got := stt.call(0).Audio; !bytes.Equal(got, want) {
		t.Fatalf("audio not concatenated in arrival order: got %d bytes, want %d", len(got), len(want))
	}
}

func TestRun_FinalizesSilentSessionWithoutFurtherChunks(t *testing.T) {
	stt := &mockTranscriber{text: "done"}
	manager := newTestManager(stt, &mockRepository{}, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, activeChunk(2000))
	backdateActivity(t, manager, "alpha", 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	waitUntil(t, 2*time.Second, func() bool { return manager.SessionCount() == 0 }, "sweeper should remove the silent session")
	waitUntil(t, 2*time.Second, func() bool { return stt.callCount() == 1 }, "sweeper should trigger transcription")

	text, ready := manager.transcripts.Get("alpha")
	if !ready || text != "done" {
		t.Fatalf("unexpected transcript: %q ready=%v", text, ready)
	}
}

func TestIngestChunk_NeverWarmedUpNeverAutoFinalizes(t *testing.T) {
	manager := newTestManager(&mockTranscriber{}, &mockRepository{}, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, activeChunk(1500))
	backdateActivity(t, manager, "alpha", time.Hour)

	if ids := manager.store.SilentIDs(time.Now(), manager.silenceTimeout); len(ids) != 0 {
		t.Fatalf("session below warm-up must never be swept, got %v", ids)
	}

	ack := manager.IngestChunk("alpha", 16000, silentChunk(100))
	if ack.Finalized {
		t.Fatal("session below warm-up must never auto-finalize")
	}
	if manager.SessionCount() != 1 {
		t.Fatal("expected session to stay alive")
	}
}

func TestFinalize_NotFound(t *testing.T) {
	manager := newTestManager(&mockTranscriber{}, &mockRepository{}, &mockPublisher{})

	if manager.Finalize("missing") {
		t.Fatal("expected finalize of unknown session to report false")
	}
}

func TestFinalize_ManualDrainsRetainedAudio(t *testing.T) {
	stt := &mockTranscriber{text: ""}
	repo := &mockRepository{}
	manager := newTestManager(stt, repo, &mockPublisher{})

	quiet := silentChunk(300)
	manager.IngestChunk("alpha", 16000, quiet)

	if !manager.Finalize("alpha") {
		t.Fatal("expected finalize to succeed")
	}
	if stt.callCount() != 1 {
		t.Fatalf("expected retained audio to be transcribed, got %d calls", stt.callCount())
	}
	if got := len(stt.call(0).Audio); got != len(quiet) {
		t.Fatalf("unexpected audio size: %d", got)
	}
	if _, ready := manager.transcripts.Get("alpha"); !ready {
		t.Fatal("expected transcript to be ready")
	}
	if record := repo.savedRecord(0); record.Reason != FinalizeReasonManual {
		t.Fatalf("unexpected reason: %q", record.Reason)
	}

	if manager.Finalize("alpha") {
		t.Fatal("expected second finalize to report false")
	}
}

func TestFinalize_EmptyAudioSkipsTranscription(t *testing.T) {
	stt := &mockTranscriber{text: "should not appear"}
	repo := &mockRepository{}
	manager := newTestManager(stt, repo, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, nil)

	if !manager.Finalize("alpha") {
		t.Fatal("expected finalize to succeed")
	}
	if stt.callCount() != 0 {
		t.Fatalf("expected no transcription for empty audio, got %d calls", stt.callCount())
	}
	if _, ready := manager.transcripts.Get("alpha"); ready {
		t.Fatal("expected no transcript for empty audio")
	}
	record := repo.savedRecord(0)
	if record.AudioBytes != 0 || record.TranscribeOK {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestFinalize_ProviderErrorStoresEmptyTranscript(t *testing.T) {
	stt := &mockTranscriber{err: errors.New("quota exhausted")}
	repo := &mockRepository{}
	manager := newTestManager(stt, repo, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, activeChunk(500))

	if !manager.Finalize("alpha") {
		t.Fatal("expected finalize to succeed")
	}
	text, ready := manager.transcripts.Get("alpha")
	if !ready || text != "" {
		t.Fatalf("expected empty ready transcript, got %q ready=%v", text, ready)
	}
	if record := repo.savedRecord(0); record.TranscribeOK {
		t.Fatal("expected transcribe_ok=false after provider error")
	}
}

func TestFinalize_ArchiveAndPublishFailuresDoNotBlock(t *testing.T) {
	stt := &mockTranscriber{text: "still here"}
	repo := &mockRepository{saveErr: errors.New("db down")}
	publisher := &mockPublisher{publishErr: errors.New("broker down")}
	manager := newTestManager(stt, repo, publisher)

	manager.IngestChunk("alpha", 16000, activeChunk(500))

	if !manager.Finalize("alpha") {
		t.Fatal("expected finalize to succeed despite side effect failures")
	}
	text, ready := manager.transcripts.Get("alpha")
	if !ready || text != "still here" {
		t.Fatalf("unexpected transcript: %q ready=%v", text, ready)
	}
}

func TestFinalize_RecordsSessionDuration(t *testing.T) {
	repo := &mockRepository{}
	manager := newTestManager(&mockTranscriber{text: "aged"}, repo, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, activeChunk(100))
	withSession(t, manager.store, "alpha", func(s *Session) {
		s.CreatedAt = s.CreatedAt.Add(-3 * time.Second)
	})

	if !manager.Finalize("alpha") {
		t.Fatal("expected finalize to succeed")
	}
	if record := repo.savedRecord(0); record.SessionDurationMS < 3000 {
		t.Fatalf("expected session duration of at least 3000ms, got %d", record.SessionDurationMS)
	}
}

func TestFinalizeAll_DrainsEverySession(t *testing.T) {
	repo := &mockRepository{}
	manager := newTestManager(&mockTranscriber{text: "bye"}, repo, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, activeChunk(100))
	manager.IngestChunk("beta", 16000, activeChunk(100))
	manager.IngestChunk("gamma", 16000, silentChunk(100))

	if count := manager.FinalizeAll(FinalizeReasonShutdown); count != 3 {
		t.Fatalf("expected 3 drained sessions, got %d", count)
	}
	if manager.SessionCount() != 0 {
		t.Fatal("expected no live sessions after drain")
	}
	if repo.savedCount() != 3 {
		t.Fatalf("expected 3 archived utterances, got %d", repo.savedCount())
	}
	for i := 0; i < repo.savedCount(); i++ {
		if reason := repo.savedRecord(i).Reason; reason != FinalizeReasonShutdown {
			t.Fatalf("unexpected reason: %q", reason)
		}
	}
}

func TestFinalize_KeepsUtteranceDumpWhenConfigured(t *testing.T) {
	manager := newTestManager(&mockTranscriber{text: "dumped"}, &mockRepository{}, &mockPublisher{})
	dir := t.TempDir()
	manager.cfg.AudioDumpDir = dir

	speech := activeChunk(500)
	manager.IngestChunk("alpha", 16000, speech)
	if !manager.Finalize("alpha") {
		t.Fatal("expected finalize to succeed")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "utterance-*.wav"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one dump file, got %d", len(matches))
	}
}

func TestIngestChunk_KeepsCreationSampleRate(t *testing.T) {
	stt := &mockTranscriber{text: "rate"}
	manager := newTestManager(stt, &mockRepository{}, &mockPublisher{})

	manager.IngestChunk("alpha", 16000, activeChunk(1000))
	manager.IngestChunk("alpha", 8000, toneChunk(8000, 1000, 8000))

	var rate int
	var durationMS int64
	var warm bool
	withSession(t, manager.store, "alpha", func(s *Session) {
		rate = s.SampleRate
		durationMS = s.ActiveAudioDurationMS
		warm = s.HasSpokenEnough
	})
	if rate != 16000 {
		t.Fatalf("expected creation rate to stick, got %d", rate)
	}
	if durationMS != 2000 || !warm {
		t.Fatalf("expected declared-rate accounting to reach warm-up, got duration=%d warm=%v", durationMS, warm)
	}

	manager.Finalize("alpha")
	if req := stt.call(0); req.SampleRate != 16000 {
		t.Fatalf("expected transcription at creation rate, got %d", req.SampleRate)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}
