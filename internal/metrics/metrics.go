// Package metrics provides Prometheus metrics for the camera driver.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as label values on the dropped-frames counter.
const (
	DropEmpty      = "empty"
	DropZeroDim    = "zero_dimensions"
	DropOversize   = "oversize"
	DropConvert    = "convert_error"
	DropNoSink     = "no_sink"
	DropNotRunning = "not_running"
)

var (
	framesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "frames_published_total",
		Help:      "Frames converted and handed to the image sinks",
	})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "frames_dropped_total",
		Help:      "Frames discarded before publishing",
	}, []string{"reason"})

	publishedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "published_bytes_total",
		Help:      "Total image payload bytes handed to the sinks",
	})

	convertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "convert_duration_seconds",
		Help:      "Time spent converting one frame to its publish encoding",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	controlWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "control_writes_total",
		Help:      "Control transfers pushed to the camera",
	}, []string{"control", "result"})

	statusEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "status_events_total",
		Help:      "Hardware status interrupts ingested",
	}, []string{"class"})

	sessionReopens = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "session_reopens_total",
		Help:      "Device sessions restarted due to configuration changes",
	})

	driverState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "uvcnode",
		Subsystem: "driver",
		Name:      "state",
		Help:      "Driver state: 0 initial, 1 stopped, 2 running",
	})

	sinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "uvcnode",
		Subsystem: "sink",
		Name:      "publish_errors_total",
		Help:      "Failed publishes per image sink",
	}, []string{"sink"})

	// Local cache so the status endpoint can report counters without
	// scraping the Prometheus registry.
	cache   DriverStats
	cacheMu sync.RWMutex
)

// DriverStats holds current counter values for the status endpoint.
type DriverStats struct {
	FramesPublished  uint64 `json:"frames_published"`
	FramesDropped    uint64 `json:"frames_dropped"`
	ControlWrites    uint64 `json:"control_writes"`
	ControlsRejected uint64 `json:"controls_rejected"`
	StatusEvents     uint64 `json:"status_events"`
	SessionReopens   uint64 `json:"session_reopens"`
}

// FramePublished records one frame handed to the sinks.
func FramePublished(payloadBytes int) {
	framesPublished.Inc()
	publishedBytes.Add(float64(payloadBytes))
	updateCache(func(s *DriverStats) { s.FramesPublished++ })
}

// FrameDropped records a discarded frame with the reason label.
func FrameDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
	updateCache(func(s *DriverStats) { s.FramesDropped++ })
}

// ObserveConvertDuration records the conversion time for one frame.
func ObserveConvertDuration(d time.Duration) {
	convertDuration.Observe(d.Seconds())
}

// ControlWrite records one control transfer and its outcome.
func ControlWrite(control string, rejected bool) {
	result := "ok"
	if rejected {
		result = "rejected"
	}
	controlWrites.WithLabelValues(control, result).Inc()
	updateCache(func(s *DriverStats) {
		s.ControlWrites++
		if rejected {
			s.ControlsRejected++
		}
	})
}

// StatusEvent records one ingested hardware status interrupt.
func StatusEvent(class string) {
	statusEvents.WithLabelValues(class).Inc()
	updateCache(func(s *DriverStats) { s.StatusEvents++ })
}

// SessionReopened records a device session restart.
func SessionReopened() {
	sessionReopens.Inc()
	updateCache(func(s *DriverStats) { s.SessionReopens++ })
}

// SetDriverState publishes the current driver state code.
func SetDriverState(code int) {
	driverState.Set(float64(code))
}

// SinkPublishError records a failed publish on the named sink.
func SinkPublishError(sink string) {
	sinkErrors.WithLabelValues(sink).Inc()
}

// GetDriverStats returns a copy of the cached counter values.
func GetDriverStats() DriverStats {
	cacheMu.RLock()
	defer cacheMu.RUnlock()
	return cache
}

func updateCache(update func(*DriverStats)) {
	cacheMu.Lock()
	update(&cache)
	cacheMu.Unlock()
}
