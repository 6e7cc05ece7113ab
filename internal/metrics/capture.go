// Package metrics provides Prometheus metrics for the capture loop.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	buttonPresses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camsnap",
		Subsystem: "button",
		Name:      "presses_total",
		Help:      "Button edges detected, by source",
	}, []string{"source"})

	snapshotsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camsnap",
		Subsystem: "snapshot",
		Name:      "saved_total",
		Help:      "JPEG snapshots written",
	})

	snapshotErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camsnap",
		Subsystem: "snapshot",
		Name:      "errors_total",
		Help:      "Failed snapshots, by stage (grab, encode)",
	}, []string{"stage"})

	encodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "camsnap",
		Subsystem: "snapshot",
		Name:      "encode_seconds",
		Help:      "Time spent converting and writing one JPEG",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	lastSnapshot = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camsnap",
		Subsystem: "snapshot",
		Name:      "last_timestamp_seconds",
		Help:      "Unix time of the last saved snapshot",
	})

	streaming = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "camsnap",
		Subsystem: "capture",
		Name:      "streaming",
		Help:      "1 while a capture session is delivering frames",
	})

	frameSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camsnap",
		Subsystem: "capture",
		Name:      "frame_pixels",
		Help:      "Negotiated frame dimensions",
	}, []string{"dimension"})

	// Local totals for the status API.
	totals   Totals
	totalsMu sync.RWMutex
)

// Totals holds counter values since process start.
type Totals struct {
	ButtonPresses  int
	Snapshots      int
	GrabErrors     int
	EncodeErrors   int
	LastSnapshotAt time.Time
}

// RecordButtonPress counts one button edge.
func RecordButtonPress(source string) {
	buttonPresses.WithLabelValues(source).Inc()
	updateTotals(func(t *Totals) { t.ButtonPresses++ })
}

// RecordSnapshot counts a saved snapshot and its encode time.
func RecordSnapshot(took time.Duration) {
	now := time.Now()
	snapshotsSaved.Inc()
	encodeDuration.Observe(took.Seconds())
	lastSnapshot.Set(float64(now.Unix()))
	updateTotals(func(t *Totals) {
		t.Snapshots++
		t.LastSnapshotAt = now
	})
}

// RecordGrabError counts a failed frame grab.
func RecordGrabError() {
	snapshotErrors.WithLabelValues("grab").Inc()
	updateTotals(func(t *Totals) { t.GrabErrors++ })
}

// RecordEncodeError counts a failed conversion or write.
func RecordEncodeError() {
	snapshotErrors.WithLabelValues("encode").Inc()
	updateTotals(func(t *Totals) { t.EncodeErrors++ })
}

// SetStreaming records the session state and frame size.
func SetStreaming(active bool, width, height int) {
	if !active {
		streaming.Set(0)
		frameSize.Reset()
		return
	}
	streaming.Set(1)
	frameSize.WithLabelValues("width").Set(float64(width))
	frameSize.WithLabelValues("height").Set(float64(height))
}

// GetTotals returns a copy of the counters.
func GetTotals() Totals {
	totalsMu.RLock()
	defer totalsMu.RUnlock()
	return totals
}

func updateTotals(update func(*Totals)) {
	totalsMu.Lock()
	defer totalsMu.Unlock()
	update(&totals)
}
