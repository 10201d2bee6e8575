package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/DUBIX17/dubix-stt3/internal/metrics"
	"github.com/DUBIX17/dubix-stt3/internal/relay"
	"github.com/DUBIX17/dubix-stt3/internal/session"
	"github.com/DUBIX17/dubix-stt3/internal/transcript"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultSampleRate = 16000
	maxSampleRate     = 384000
)

type Server struct {
	manager     *session.Manager
	transcripts *transcript.Store
	relayCache  *relay.Cache
	upstream    relay.Upstream
	metrics     *metrics.Metrics
}

func NewServer(
	manager *session.Manager,
	transcripts *transcript.Store,
	relayCache *relay.Cache,
	upstream relay.Upstream,
	m *metrics.Metrics,
) *Server {
	return &Server{
		manager:     manager,
		transcripts: transcripts,
		relayCache:  relayCache,
		upstream:    upstream,
		metrics:     m,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/audio", s.handleAudio)
		r.Post("/finalize", s.handleFinalize)
		r.Get("/transcript", s.handleTranscript)
		r.Get("/stream", s.handleStream)
		r.Post("/relay/audio", s.handleRelayAudio)
		r.Get("/relay/latest", s.handleRelayLatest)
	})
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

type chunkAckResponse struct {
	SessionID string  `json:"session_id"`
	Loudness  float64 `json:"loudness"`
	Active    bool    `json:"active"`
	Finalized bool    `json:"finalized"`
}

type finalizeResponse struct {
	SessionID string `json:"session_id"`
	Finalized bool   `json:"finalized"`
}

type transcriptResponse struct {
	Text  string `json:"text"`
	Ready bool   `json:"ready"`
}

type relayForwardResponse struct {
	Forwarded bool `json:"forwarded"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	rate, err := parseSampleRate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	ack := s.manager.IngestChunk(r.URL.Query().Get("session"), rate, chunk)
	writeJSON(w, http.StatusOK, chunkAckResponse{
		SessionID: ack.SessionID,
		Loudness:  ack.Loudness,
		Active:    ack.Active,
		Finalized: ack.Finalized,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id := session.NormalizeID(r.URL.Query().Get("session"))
	if !s.manager.Finalize(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, finalizeResponse{SessionID: id, Finalized: true})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := session.NormalizeID(r.URL.Query().Get("session"))
	text, ready := s.transcripts.Get(id)
	writeJSON(w, http.StatusOK, transcriptResponse{Text: text, Ready: ready})
}

func (s *Server) handleRelayAudio(w http.ResponseWriter, r *http.Request) {
	if !s.upstream.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "relay upstream not configured")
		return
	}
	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if err := s.upstream.Forward(chunk); err != nil {
		s.metrics.RelayForwards.WithLabelValues(metrics.ResultError).Inc()
		slog.Error("relay forward failed", "error", err, "bytes", len(chunk))
		writeError(w, http.StatusBadGateway, "relay forward failed")
		return
	}
	s.metrics.RelayForwards.WithLabelValues(metrics.ResultOK).Inc()
	writeJSON(w, http.StatusOK, relayForwardResponse{Forwarded: true})
}

func (s *Server) handleRelayLatest(w http.ResponseWriter, r *http.Request) {
	if !s.upstream.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "relay upstream not configured")
		return
	}
	text, ready := s.relayCache.Get()
	writeJSON(w, http.StatusOK, transcriptResponse{Text: text, Ready: ready})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.manager.SessionCount(),
	})
}

func parseSampleRate(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("rate")
	if raw == "" {
		return defaultSampleRate, nil
	}
	rate, err := strconv.Atoi(raw)
	if err != nil || rate <= 0 || rate > maxSampleRate {
		return 0, fmt.Errorf("rate must be a positive integer at or below %d", maxSampleRate)
	}
	return rate, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
