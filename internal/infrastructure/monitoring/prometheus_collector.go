package monitoring

import (
	"streamcast/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	peersConnected     prometheus.Gauge
	roomsActive        prometheus.Gauge
	signalsRelayed     prometheus.Counter
	recordingsStored   prometheus.Counter
	recordingBytes     prometheus.Counter
	transcodesInFlight prometheus.Gauge
	transcodeDuration  prometheus.Histogram
	presetSwitches     *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		peersConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_peers_connected",
			Help: "Number of peers currently connected to signaling",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_rooms_active",
			Help: "Number of rooms with at least one member",
		}),

		signalsRelayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_signals_relayed_total",
			Help: "Total number of signaling envelopes relayed between peers",
		}),

		recordingsStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_recordings_stored_total",
			Help: "Total number of recordings committed to the store",
		}),

		recordingBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "streamcast_recording_bytes_total",
			Help: "Total bytes of recording payload stored",
		}),

		transcodesInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streamcast_transcodes_in_flight",
			Help: "Number of transcode pipelines currently running",
		}),

		transcodeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "streamcast_transcode_duration_seconds",
			Help:    "Wall time of completed transcode pipelines",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		presetSwitches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcast_preset_switches_total",
			Help: "Quality preset switches by target tier",
		}, []string{"to"}),
	}
}

func (p *PrometheusCollector) PeerConnected()    { p.peersConnected.Inc() }
func (p *PrometheusCollector) PeerDisconnected() { p.peersConnected.Dec() }
func (p *PrometheusCollector) SignalRelayed()    { p.signalsRelayed.Inc() }

func (p *PrometheusCollector) SetActiveRooms(n int) {
	p.roomsActive.Set(float64(n))
}

func (p *PrometheusCollector) RecordingStored(bytes int64) {
	p.recordingsStored.Inc()
	p.recordingBytes.Add(float64(bytes))
}

func (p *PrometheusCollector) TranscodeStarted()  { p.transcodesInFlight.Inc() }
func (p *PrometheusCollector) TranscodeFinished() { p.transcodesInFlight.Dec() }

func (p *PrometheusCollector) TranscodeCompleted(seconds float64) {
	p.transcodeDuration.Observe(seconds)
}

func (p *PrometheusCollector) PresetSwitched(to domain.PresetName) {
	p.presetSwitches.WithLabelValues(string(to)).Inc()
}
