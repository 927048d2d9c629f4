package uvcsim

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/openuvc/uvcnode/pkg/uvc"
)

// ControlWrite records one control write observed by a camera. Coupled
// controls (pan/tilt) carry both values in one write.
type ControlWrite struct {
	Name   string
	Values []int64
}

// Camera simulates a single UVC device.
type Camera struct {
	// Desc is the identity reported during enumeration.
	Desc uvc.DeviceInfo
	// FrameInterval enables free-running synthetic frames once
	// streaming starts. Zero means frames arrive only via EmitFrame.
	FrameInterval time.Duration

	mu            sync.Mutex
	opened        bool
	streaming     bool
	frameCb       uvc.FrameCallback
	statusCb      uvc.StatusCallback
	writes        []ControlWrite
	reject        map[string]bool
	openErr       error
	negotiateErr  error
	streamErr     error
	unrefs        int
	negotiated    uvc.StreamParams
	diagRequested int
	stopFree      chan struct{}
	freeDone      chan struct{}
}

// NewCamera creates a camera with the given enumeration identity.
func NewCamera(desc uvc.DeviceInfo) *Camera {
	return &Camera{Desc: desc, reject: make(map[string]bool)}
}

// RejectControl makes future writes of the named control fail. Names
// follow the handle setters: scanning_mode, ae_mode, ae_priority,
// exposure_abs, focus_abs, focus_auto, gain, brightness, iris_abs,
// pantilt_abs.
func (c *Camera) RejectControl(name string) {
	c.mu.Lock()
	c.reject[name] = true
	c.mu.Unlock()
}

// AcceptControl clears a rejection set by RejectControl.
func (c *Camera) AcceptControl(name string) {
	c.mu.Lock()
	delete(c.reject, name)
	c.mu.Unlock()
}

// SetOpenError makes Open fail with err until cleared with nil.
func (c *Camera) SetOpenError(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

// SetNegotiateError makes NegotiateStream fail with err until cleared.
func (c *Camera) SetNegotiateError(err error) {
	c.mu.Lock()
	c.negotiateErr = err
	c.mu.Unlock()
}

// SetStreamError makes StartStreaming fail with err until cleared.
func (c *Camera) SetStreamError(err error) {
	c.mu.Lock()
	c.streamErr = err
	c.mu.Unlock()
}

// Writes returns a copy of every control write seen so far.
func (c *Camera) Writes() []ControlWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ControlWrite, len(c.writes))
	copy(out, c.writes)
	return out
}

// ResetWrites clears the recorded control writes.
func (c *Camera) ResetWrites() {
	c.mu.Lock()
	c.writes = nil
	c.mu.Unlock()
}

// UnrefCount reports how many times the enumeration reference was
// released.
func (c *Camera) UnrefCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unrefs
}

// Opened reports whether a handle is currently open.
func (c *Camera) Opened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Streaming reports whether frames are being delivered.
func (c *Camera) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Negotiated returns the last stream parameters accepted.
func (c *Camera) Negotiated() uvc.StreamParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.negotiated
}

// DiagRequests reports how many capability dumps were requested.
func (c *Camera) DiagRequests() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.diagRequested
}

// EmitFrame delivers a frame on the caller's goroutine and reports
// whether a streaming callback consumed it.
func (c *Camera) EmitFrame(f *uvc.Frame) bool {
	c.mu.Lock()
	cb := c.frameCb
	streaming := c.streaming
	c.mu.Unlock()
	if !streaming || cb == nil {
		return false
	}
	cb(f)
	return true
}

// EmitStatus delivers a status event on the caller's goroutine and
// reports whether a callback consumed it.
func (c *Camera) EmitStatus(e uvc.StatusEvent) bool {
	c.mu.Lock()
	cb := c.statusCb
	c.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(e)
	return true
}

// Info implements uvc.Device.
func (c *Camera) Info() uvc.DeviceInfo { return c.Desc }

// Open implements uvc.Device.
func (c *Camera) Open() (uvc.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	if c.opened {
		return nil, fmt.Errorf("camera %04x:%04x already open", c.Desc.VendorID, c.Desc.ProductID)
	}
	c.opened = true
	return &handle{cam: c}, nil
}

// Unref implements uvc.Device.
func (c *Camera) Unref() {
	c.mu.Lock()
	c.unrefs++
	c.mu.Unlock()
}

type handle struct {
	cam    *Camera
	mu     sync.Mutex
	closed bool
}

func (h *handle) guard() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return uvc.ErrClosed
	}
	return nil
}

func (h *handle) NegotiateStream(p uvc.StreamParams) (uvc.StreamCtrl, error) {
	if err := h.guard(); err != nil {
		return nil, err
	}
	c := h.cam
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.negotiateErr != nil {
		return nil, c.negotiateErr
	}
	c.negotiated = p
	return p, nil
}

func (h *handle) StartStreaming(ctrl uvc.StreamCtrl, cb uvc.FrameCallback) error {
	if err := h.guard(); err != nil {
		return err
	}
	if cb == nil {
		return fmt.Errorf("uvcsim: nil frame callback")
	}
	params, ok := ctrl.(uvc.StreamParams)
	if !ok {
		return fmt.Errorf("uvcsim: foreign stream control block %T", ctrl)
	}
	c := h.cam
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamErr != nil {
		return c.streamErr
	}
	if c.streaming {
		return fmt.Errorf("uvcsim: already streaming")
	}
	c.frameCb = cb
	c.streaming = true
	if c.FrameInterval > 0 {
		c.stopFree = make(chan struct{})
		c.freeDone = make(chan struct{})
		go c.freeRun(params, c.stopFree, c.freeDone)
	}
	return nil
}

// freeRun generates synthetic frames until stopped.
func (c *Camera) freeRun(p uvc.StreamParams, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.FrameInterval)
	defer ticker.Stop()
	var seq uint32
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			f := synthFrame(p, seq)
			seq++
			c.mu.Lock()
			cb := c.frameCb
			streaming := c.streaming
			c.mu.Unlock()
			if streaming && cb != nil {
				cb(f)
			}
		}
	}
}

// synthFrame builds a gray diagonal ramp so converted output looks
// sane in downstream viewers.
func synthFrame(p uvc.StreamParams, seq uint32) *uvc.Frame {
	format := p.Format
	if format == uvc.FormatAny || format == uvc.FormatUncompressed {
		// Real devices negotiated without an explicit format deliver YUY2.
		format = uvc.FormatYUYV
	}
	var data []byte
	n := p.Width * p.Height
	switch format {
	case uvc.FormatYUYV, uvc.FormatUYVY:
		data = make([]byte, n*2)
		for i := 0; i < len(data); i += 2 {
			data[i] = byte(int(seq)*4 + i/2)
			data[i+1] = 128
		}
	case uvc.FormatRGB, uvc.FormatBGR:
		data = make([]byte, n*3)
		for i := range data {
			data[i] = byte(int(seq)*4 + i/3)
		}
	case uvc.FormatGray8:
		data = make([]byte, n)
		for i := range data {
			data[i] = byte(int(seq)*4 + i)
		}
	default:
		data = make([]byte, n*2)
	}
	return &uvc.Frame{
		Data:     data,
		Format:   format,
		Width:    p.Width,
		Height:   p.Height,
		Sequence: seq,
	}
}

func (h *handle) SetStatusCallback(cb uvc.StatusCallback) {
	c := h.cam
	c.mu.Lock()
	c.statusCb = cb
	c.mu.Unlock()
}

func (h *handle) writeControl(name string, values ...int64) error {
	if err := h.guard(); err != nil {
		return err
	}
	c := h.cam
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject[name] {
		return fmt.Errorf("%s: %w", name, uvc.ErrNotSupported)
	}
	c.writes = append(c.writes, ControlWrite{Name: name, Values: values})
	return nil
}

func (h *handle) SetScanningMode(v uint8) error { return h.writeControl("scanning_mode", int64(v)) }
func (h *handle) SetAEMode(v uint8) error       { return h.writeControl("ae_mode", int64(v)) }
func (h *handle) SetAEPriority(v uint8) error   { return h.writeControl("ae_priority", int64(v)) }
func (h *handle) SetExposureAbs(v uint32) error { return h.writeControl("exposure_abs", int64(v)) }
func (h *handle) SetFocusAbs(v uint16) error    { return h.writeControl("focus_abs", int64(v)) }
func (h *handle) SetGain(v uint16) error        { return h.writeControl("gain", int64(v)) }
func (h *handle) SetBrightness(v int16) error   { return h.writeControl("brightness", int64(v)) }
func (h *handle) SetIrisAbs(v uint16) error     { return h.writeControl("iris_abs", int64(v)) }

func (h *handle) SetFocusAuto(v bool) error {
	var n int64
	if v {
		n = 1
	}
	return h.writeControl("focus_auto", n)
}

func (h *handle) SetPanTiltAbs(pan, tilt int32) error {
	return h.writeControl("pantilt_abs", int64(pan), int64(tilt))
}

func (h *handle) WriteDiag(w io.Writer) {
	c := h.cam
	c.mu.Lock()
	c.diagRequested++
	desc := c.Desc
	p := c.negotiated
	c.mu.Unlock()
	fmt.Fprintf(w, "uvcsim %04x:%04x serial=%q\n", desc.VendorID, desc.ProductID, desc.Serial)
	fmt.Fprintf(w, "  last negotiation: %s %dx%d @%dfps\n", p.Format, p.Width, p.Height, p.FrameRate)
}

func (h *handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return uvc.ErrClosed
	}
	h.closed = true
	h.mu.Unlock()

	c := h.cam
	c.mu.Lock()
	c.streaming = false
	c.frameCb = nil
	c.statusCb = nil
	c.opened = false
	stop, done := c.stopFree, c.freeDone
	c.stopFree, c.freeDone = nil, nil
	c.mu.Unlock()

	// Join the free-run goroutine so no callback is in flight once
	// Close returns.
	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
