// Package uvc defines the transport contract between a USB Video Class
// camera stack and the driver that orchestrates it, plus the pure frame
// conversion helpers shared by every transport.
//
// The package contains no USB plumbing. It models the surface the
// driver needs: context initialization, device lookup, open/close,
// stream negotiation, asynchronous frame delivery, control writes, and
// device-originated status events. Concrete transports implement these
// interfaces; uvcsim provides a deterministic in-memory one for tests
// and development.
//
// # Callback contract
//
// Frame and status callbacks run on the transport's delivery
// goroutines, one event at a time. A Handle's Close must not return
// while a callback is still in flight; consumers rely on this to tear
// down without draining.
package uvc

import (
	"errors"
	"io"
)

// Sentinel errors transports wrap so callers can classify failures.
var (
	// ErrNoDevice indicates no device matched the lookup filter.
	ErrNoDevice = errors.New("uvc: no matching device")
	// ErrAccess indicates the device exists but could not be claimed
	// with the caller's permissions.
	ErrAccess = errors.New("uvc: access denied")
	// ErrNotSupported indicates the device rejected a control write or
	// stream parameter set.
	ErrNotSupported = errors.New("uvc: not supported")
	// ErrClosed indicates the context or handle was already closed.
	ErrClosed = errors.New("uvc: closed")
)

// FrameFormat identifies the pixel encoding of a captured frame or of
// a requested stream.
type FrameFormat uint32

// Stream and frame formats. FormatAny and FormatUncompressed leave the
// concrete encoding to the device; frames delivered from such streams
// carry the actual format.
const (
	FormatUnknown FrameFormat = iota
	FormatAny
	FormatUncompressed
	FormatCompressed
	FormatYUYV
	FormatUYVY
	FormatRGB
	FormatBGR
	FormatMJPEG
	FormatGray8
)

// Frame is one captured video frame. The payload belongs to the
// transport and may be reused as soon as the frame callback returns,
// so consumers must copy out anything they keep.
type Frame struct {
	Data     []byte
	Format   FrameFormat
	Width    int
	Height   int
	Sequence uint32
}

// DeviceInfo describes an enumerated camera.
type DeviceInfo struct {
	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
	Serial    string `json:"serial,omitempty"`
	Product   string `json:"product,omitempty"`
	Bus       uint8  `json:"bus"`
	Address   uint8  `json:"address"`
	Path      string `json:"path,omitempty"`
}

// DeviceFilter selects a device during lookup. Zero VendorID or
// ProductID matches any vendor or product, an empty Serial matches any
// serial, and Index picks the n-th device (0-based) among those
// matching the other fields.
type DeviceFilter struct {
	VendorID  uint16
	ProductID uint16
	Serial    string
	Index     int
}

// StreamParams is the stream setup requested from the device.
type StreamParams struct {
	Format    FrameFormat
	Width     int
	Height    int
	FrameRate int
}

// StreamCtrl is a negotiated stream control block. Opaque to callers;
// only the transport that produced it consumes it in StartStreaming.
type StreamCtrl interface{}

// FrameCallback receives captured frames on the transport's delivery
// goroutine.
type FrameCallback func(*Frame)

// Transport creates contexts. Init is the only operation permitted
// before anything else; it fails when the underlying stack cannot be
// brought up at all.
type Transport interface {
	Init() (Context, error)
}

// Context is an initialized handle to the camera stack.
type Context interface {
	// FindDevice resolves a single device. The returned error wraps
	// ErrNoDevice when nothing matches.
	FindDevice(f DeviceFilter) (Device, error)
	// Devices enumerates every camera visible to the transport.
	Devices() ([]DeviceInfo, error)
	// Close releases the context. Nothing obtained from this context
	// may be used afterwards.
	Close() error
}

// Device is an enumerated camera, not necessarily opened.
type Device interface {
	Info() DeviceInfo
	// Open claims the device. The returned error wraps ErrAccess when
	// permissions are the cause.
	Open() (Handle, error)
	// Unref releases the enumeration reference. Call exactly once when
	// the device is no longer needed, whether or not Open succeeded.
	Unref()
}

// Handle is an open camera.
type Handle interface {
	// NegotiateStream asks the device for a stream control block
	// matching p.
	NegotiateStream(p StreamParams) (StreamCtrl, error)
	// StartStreaming begins asynchronous capture. cb runs on the
	// transport's delivery goroutine, one frame at a time.
	StartStreaming(ctrl StreamCtrl, cb FrameCallback) error
	// SetStatusCallback registers the receiver for device-originated
	// control change events. Pass nil to clear.
	SetStatusCallback(cb StatusCallback)

	// Control writes. Values use the device-level encodings; the
	// selector constants name the corresponding UVC controls.
	SetScanningMode(v uint8) error
	SetAEMode(v uint8) error
	SetAEPriority(v uint8) error
	SetExposureAbs(v uint32) error
	SetFocusAbs(v uint16) error
	SetFocusAuto(v bool) error
	SetGain(v uint16) error
	SetBrightness(v int16) error
	SetIrisAbs(v uint16) error
	SetPanTiltAbs(pan, tilt int32) error

	// WriteDiag dumps the device's stream capabilities, typically
	// requested after a failed negotiation.
	WriteDiag(w io.Writer)
	// Close stops streaming and releases the device. No frame or
	// status callback is in flight once Close returns.
	Close() error
}
