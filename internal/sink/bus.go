package sink

import (
	"time"

	"github.com/openuvc/uvcnode/internal/events"
)

// BusSink publishes frame metadata to the in-process event bus. Pixel
// data stays out of the bus; SSE clients and the NATS event bridge only
// see the envelope.
type BusSink struct {
	bus *events.Bus
}

// NewBusSink wraps an event bus as a frame sink.
func NewBusSink(bus *events.Bus) *BusSink {
	return &BusSink{bus: bus}
}

// Publish implements Sink.
func (b *BusSink) Publish(img *Image) error {
	b.bus.Publish(events.FramePublishedEvent{
		FrameID:   img.FrameID,
		Seq:       img.Seq,
		Width:     img.Width,
		Height:    img.Height,
		Encoding:  img.Encoding,
		TraceID:   img.TraceID,
		Timestamp: img.Stamp.UTC().Format(time.RFC3339Nano),
	})
	return nil
}

// Name implements Sink.
func (b *BusSink) Name() string { return "bus" }

// Close implements Sink.
func (b *BusSink) Close() error { return nil }
