package relayhttp

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sir_venger/drive_relay/internal/models"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const metricsNamespace = "drive_relay"

// Metrics экспортирует события ретранслятора в Prometheus.
type Metrics struct {
	initiations *prometheus.CounterVec
	chunks      *prometheus.CounterVec
	bytes       prometheus.Counter
	latency     *prometheus.HistogramVec
}

// NewMetrics регистрирует коллекторы в reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		initiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "initiations_total",
			Help:      "Upload session initiations by result.",
		}, []string{"result"}),
		chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chunks_total",
			Help:      "Relayed chunks by provider outcome.",
		}, []string{"outcome"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "relayed_bytes_total",
			Help:      "Bytes forwarded to the provider.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "provider_duration_seconds",
			Help:      "Latency of provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.initiations, m.chunks, m.bytes, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveInitiate(err error, d time.Duration) {
	m.latency.WithLabelValues("initiate").Observe(d.Seconds())
	m.initiations.WithLabelValues(errorLabel(err)).Inc()
}

func (m *Metrics) ObserveChunk(out uploadproto.Outcome, err error, n int64, d time.Duration) {
	m.latency.WithLabelValues("chunk").Observe(d.Seconds())
	if err != nil {
		m.chunks.WithLabelValues(errorLabel(err)).Inc()
		return
	}
	switch out.(type) {
	case uploadproto.Continue:
		m.chunks.WithLabelValues("continue").Inc()
	case uploadproto.Complete:
		m.chunks.WithLabelValues("complete").Inc()
	case uploadproto.Failed:
		m.chunks.WithLabelValues("failed").Inc()
	}
	m.bytes.Add(float64(n))
}

func errorLabel(err error) string {
	var perr *models.ProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrAuth):
		return "auth_error"
	case errors.As(err, &perr):
		return "provider_error"
	default:
		return "error"
	}
}
