// Package sink fans converted camera frames out to their consumers.
//
// The driver publishes every frame exactly once through a Sink. The
// concrete sinks deliver to the in-process event bus (metadata only)
// and to NATS (full payload plus calibration). MultiSink combines them
// so a failing consumer never stalls the capture path.
package sink

import (
	"errors"
	"time"

	"github.com/openuvc/uvcnode/internal/camerainfo"
	"github.com/openuvc/uvcnode/internal/metrics"
)

// Image is one converted frame paired with its calibration.
//
// Data references the driver's conversion buffer and is only valid for
// the duration of the Publish call; sinks that retain the payload must
// copy it.
type Image struct {
	FrameID  string
	Seq      uint32
	Stamp    time.Time
	Width    int
	Height   int
	Step     int
	Encoding string
	TraceID  string
	Data     []byte
	Info     camerainfo.CameraInfo
}

// Sink receives converted frames.
type Sink interface {
	// Publish delivers one frame. Implementations must not retain
	// img.Data past the call.
	Publish(img *Image) error
	// Name identifies the sink in logs and metrics.
	Name() string
	// Close releases resources held by the sink.
	Close() error
}

// MultiSink fans each frame out to every wrapped sink. A sink error is
// counted and collected but does not prevent delivery to the others.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Publish implements Sink.
func (m *MultiSink) Publish(img *Image) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Publish(img); err != nil {
			metrics.SinkPublishError(s.Name())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name implements Sink.
func (m *MultiSink) Name() string { return "multi" }

// Close implements Sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
