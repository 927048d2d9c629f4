package driver

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/pkg/uvc"
)

// session owns the open camera handle, its enumeration reference, and
// the scratch conversion buffer. Only the driver touches it, under the
// driver lock.
type session struct {
	logger  *slog.Logger
	dev     uvc.Device
	handle  uvc.Handle
	params  uvc.StreamParams
	scratch []byte
}

func (s *session) isOpen() bool { return s.handle != nil }

func (s *session) deviceInfo() uvc.DeviceInfo { return s.dev.Info() }

// open resolves the device selected by snap, opens it, registers the
// status callback, negotiates the requested stream, and starts
// asynchronous capture. Each failing step unwinds the steps before it,
// so a failed open leaves no reference behind.
func (s *session) open(ctx uvc.Context, snap *config.Snapshot, onFrame uvc.FrameCallback, onStatus uvc.StatusCallback) error {
	if s.isOpen() {
		panic("driver: session opened twice")
	}

	vendor, err := snap.VendorID()
	if err != nil {
		return newError(ErrCodeNotFound, "bad vendor selector", err)
	}
	product, err := snap.ProductID()
	if err != nil {
		return newError(ErrCodeNotFound, "bad product selector", err)
	}
	filter := uvc.DeviceFilter{
		VendorID:  vendor,
		ProductID: product,
		Serial:    snap.Serial,
		Index:     snap.Index,
	}
	dev, err := ctx.FindDevice(filter)
	if err != nil {
		return newError(ErrCodeNotFound,
			fmt.Sprintf("no camera matches vendor %q product %q serial %q index %d",
				snap.Vendor, snap.Product, snap.Serial, snap.Index), err)
	}

	info := dev.Info()
	handle, err := dev.Open()
	if err != nil {
		dev.Unref()
		code := ErrCodeOpenFailed
		if errors.Is(err, uvc.ErrAccess) {
			code = ErrCodeAccessDenied
		}
		return newError(code,
			fmt.Sprintf("unable to open camera on bus %d address %d", info.Bus, info.Address), err)
	}
	handle.SetStatusCallback(onStatus)

	format, err := uvc.ParseVideoMode(snap.VideoMode)
	if err != nil {
		s.logger.Warn("unknown video mode, requesting uncompressed", "video_mode", snap.VideoMode)
	}
	params := uvc.StreamParams{
		Format:    format,
		Width:     snap.Width,
		Height:    snap.Height,
		FrameRate: snap.FrameRate,
	}
	ctrl, err := handle.NegotiateStream(params)
	if err != nil {
		var diag strings.Builder
		handle.WriteDiag(&diag)
		s.logger.Error("stream negotiation failed",
			"format", format.String(),
			"width", snap.Width,
			"height", snap.Height,
			"frame_rate", snap.FrameRate,
			"error", err,
			"capabilities", diag.String())
		handle.Close()
		dev.Unref()
		return newError(ErrCodeNegotiation,
			fmt.Sprintf("no stream for %s %dx%d @%d fps", format, snap.Width, snap.Height, snap.FrameRate), err)
	}

	if err := handle.StartStreaming(ctrl, onFrame); err != nil {
		handle.Close()
		dev.Unref()
		return newError(ErrCodeStreamStart, "streaming start failed", err)
	}

	s.dev = dev
	s.handle = handle
	s.params = params
	// The conversion target never exceeds the safety ceiling; frames
	// that would need more are dropped before touching it.
	s.scratch = make([]byte, min(snap.Width*snap.Height*3, snap.Ceiling()))
	s.logger.Info("camera streaming",
		"vendor", fmt.Sprintf("%#06x", info.VendorID),
		"product", fmt.Sprintf("%#06x", info.ProductID),
		"serial", info.Serial,
		"format", format.String(),
		"width", snap.Width,
		"height", snap.Height,
		"frame_rate", snap.FrameRate)
	return nil
}

// close stops streaming via handle close and releases the enumeration
// reference. The transport contract guarantees no frame or status
// callback is in flight once the handle close returns.
func (s *session) close() {
	if !s.isOpen() {
		panic("driver: session closed twice")
	}
	if err := s.handle.Close(); err != nil {
		s.logger.Warn("camera close", "error", err)
	}
	s.dev.Unref()
	s.dev = nil
	s.handle = nil
	s.scratch = nil
}
