package sink

import (
	"time"

	"github.com/openuvc/uvcnode/internal/nats"
)

// NATSSink publishes full frames and their calibration to the node's
// NATS subjects. When the broker is unreachable Publish fails fast with
// nats.ErrNotConnected; the frame is only lost for external subscribers.
//
// The wrapped client's lifetime is managed by the caller, so Close is a
// no-op here.
type NATSSink struct {
	client *nats.Client
}

// NewNATSSink wraps a NATS client as a frame sink.
func NewNATSSink(client *nats.Client) *NATSSink {
	return &NATSSink{client: client}
}

// Publish implements Sink. The image payload is serialized before the
// call returns, so the borrowed Data slice is never retained.
func (n *NATSSink) Publish(img *Image) error {
	stamp := img.Stamp.UTC().Format(time.RFC3339Nano)
	err := n.client.PublishImage(nats.ImageMessage{
		FrameID:  img.FrameID,
		Seq:      img.Seq,
		Stamp:    stamp,
		Width:    img.Width,
		Height:   img.Height,
		Step:     img.Step,
		Encoding: img.Encoding,
		TraceID:  img.TraceID,
		Data:     img.Data,
	})
	if err != nil {
		return err
	}
	return n.client.PublishInfo(nats.InfoMessage{
		FrameID:    img.FrameID,
		Stamp:      stamp,
		TraceID:    img.TraceID,
		CameraInfo: img.Info,
	})
}

// Name implements Sink.
func (n *NATSSink) Name() string { return "nats" }

// Close implements Sink.
func (n *NATSSink) Close() error { return nil }
