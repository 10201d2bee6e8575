package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChunksReceived    *prometheus.CounterVec
	ActiveSessions    prometheus.Gauge
	FinalizeTotal     *prometheus.CounterVec
	TranscribeSeconds prometheus.Histogram
	RelayForwards     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_chunks_received_total",
			Help: "Audio chunks ingested, by classification outcome",
		}, []string{"class"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stt_active_sessions",
			Help: "Sessions currently accumulating audio",
		}),
		FinalizeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_finalize_total",
			Help: "Session finalizations, by trigger reason and result",
		}, []string{"reason", "result"}),
		TranscribeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stt_transcribe_duration_seconds",
			Help:    "Wall time of transcription provider calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		RelayForwards: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stt_relay_forward_total",
			Help: "Chunks forwarded to the relay upstream, by result",
		}, []string{"result"}),
	}
}

const (
	ChunkClassActive    = "active"
	ChunkClassRetained  = "retained"
	ChunkClassDiscarded = "discarded"

	ResultOK            = "ok"
	ResultEmpty         = "empty"
	ResultProviderError = "provider_error"
	ResultError         = "error"
)
