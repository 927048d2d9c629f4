package uvcsim

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openuvc/uvcnode/pkg/uvc"
)

func testCamera(serial string) *Camera {
	return NewCamera(uvc.DeviceInfo{
		VendorID:  0x046d,
		ProductID: 0x0825,
		Serial:    serial,
		Product:   "Simulated Webcam",
	})
}

func TestFindDeviceFilter(t *testing.T) {
	tr := New(testCamera("A"), testCamera("B"))
	ctx, err := tr.Init()
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	tests := []struct {
		name       string
		filter     uvc.DeviceFilter
		wantSerial string
		wantErr    bool
	}{
		{"any", uvc.DeviceFilter{}, "A", false},
		{"by serial", uvc.DeviceFilter{Serial: "B"}, "B", false},
		{"by index", uvc.DeviceFilter{Index: 1}, "B", false},
		{"by vendor", uvc.DeviceFilter{VendorID: 0x046d}, "A", false},
		{"wrong vendor", uvc.DeviceFilter{VendorID: 0x1234}, "", true},
		{"index out of range", uvc.DeviceFilter{Index: 2}, "", true},
		{"wrong serial", uvc.DeviceFilter{Serial: "C"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := ctx.FindDevice(tt.filter)
			if tt.wantErr {
				if !errors.Is(err, uvc.ErrNoDevice) {
					t.Fatalf("error = %v, want ErrNoDevice", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindDevice failed: %v", err)
			}
			if got := dev.Info().Serial; got != tt.wantSerial {
				t.Errorf("serial = %q, want %q", got, tt.wantSerial)
			}
		})
	}
}

func TestStreamingLifecycle(t *testing.T) {
	cam := testCamera("A")
	tr := New(cam)
	ctx, err := tr.Init()
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	dev, err := ctx.FindDevice(uvc.DeviceFilter{})
	if err != nil {
		t.Fatalf("FindDevice failed: %v", err)
	}
	h, err := dev.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	params := uvc.StreamParams{Format: uvc.FormatYUYV, Width: 4, Height: 2, FrameRate: 30}
	ctrl, err := h.NegotiateStream(params)
	if err != nil {
		t.Fatalf("NegotiateStream failed: %v", err)
	}

	var got atomic.Int32
	if err := h.StartStreaming(ctrl, func(f *uvc.Frame) {
		got.Add(1)
	}); err != nil {
		t.Fatalf("StartStreaming failed: %v", err)
	}

	if !cam.EmitFrame(&uvc.Frame{Format: uvc.FormatYUYV, Width: 4, Height: 2, Data: make([]byte, 16)}) {
		t.Fatal("EmitFrame not delivered while streaming")
	}
	if got.Load() != 1 {
		t.Fatalf("frames delivered = %d, want 1", got.Load())
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if cam.EmitFrame(&uvc.Frame{}) {
		t.Error("EmitFrame delivered after Close")
	}
	if !errors.Is(h.Close(), uvc.ErrClosed) {
		t.Error("second Close did not report ErrClosed")
	}
	if cam.Opened() {
		t.Error("camera still marked open after Close")
	}
	dev.Unref()
	if cam.UnrefCount() != 1 {
		t.Errorf("unref count = %d, want 1", cam.UnrefCount())
	}
}

func TestControlWritesAndRejection(t *testing.T) {
	cam := testCamera("A")
	h, err := cam.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer h.Close()

	cam.RejectControl("gain")

	if err := h.SetExposureAbs(200); err != nil {
		t.Fatalf("SetExposureAbs failed: %v", err)
	}
	if err := h.SetGain(64); !errors.Is(err, uvc.ErrNotSupported) {
		t.Fatalf("rejected write error = %v, want ErrNotSupported", err)
	}
	if err := h.SetPanTiltAbs(100, -50); err != nil {
		t.Fatalf("SetPanTiltAbs failed: %v", err)
	}

	writes := cam.Writes()
	if len(writes) != 2 {
		t.Fatalf("recorded writes = %d, want 2 (rejected write must not record)", len(writes))
	}
	if writes[0].Name != "exposure_abs" || writes[0].Values[0] != 200 {
		t.Errorf("first write = %+v", writes[0])
	}
	if writes[1].Name != "pantilt_abs" || len(writes[1].Values) != 2 || writes[1].Values[1] != -50 {
		t.Errorf("pan/tilt write = %+v", writes[1])
	}
}

func TestStatusDelivery(t *testing.T) {
	cam := testCamera("A")
	h, err := cam.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer h.Close()

	events := make(chan uvc.StatusEvent, 1)
	h.SetStatusCallback(func(e uvc.StatusEvent) { events <- e })

	if !cam.EmitStatus(uvc.StatusEvent{
		Class:     uvc.StatusClassControlCamera,
		Selector:  uvc.SelectorExposureTimeAbsolute,
		Attribute: uvc.StatusAttributeValueChange,
		Data:      []byte{0x10, 0x27, 0x00, 0x00},
	}) {
		t.Fatal("EmitStatus not delivered")
	}

	select {
	case e := <-events:
		if e.Selector != uvc.SelectorExposureTimeAbsolute {
			t.Errorf("selector = %#x", e.Selector)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status event")
	}
}

func TestFreeRunStopsOnClose(t *testing.T) {
	cam := testCamera("A")
	cam.FrameInterval = 2 * time.Millisecond

	h, err := cam.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctrl, err := h.NegotiateStream(uvc.StreamParams{Format: uvc.FormatYUYV, Width: 8, Height: 4, FrameRate: 30})
	if err != nil {
		t.Fatalf("NegotiateStream failed: %v", err)
	}

	var count atomic.Int64
	if err := h.StartStreaming(ctrl, func(f *uvc.Frame) {
		count.Add(1)
	}); err != nil {
		t.Fatalf("StartStreaming failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for count.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d frames before deadline", count.Load())
		case <-time.After(time.Millisecond):
		}
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	after := count.Load()
	time.Sleep(20 * time.Millisecond)
	if count.Load() != after {
		t.Errorf("frames kept arriving after Close: %d -> %d", after, count.Load())
	}
}

func TestInitError(t *testing.T) {
	tr := New()
	wantErr := errors.New("usb stack unavailable")
	tr.SetInitError(wantErr)
	if _, err := tr.Init(); !errors.Is(err, wantErr) {
		t.Fatalf("Init error = %v, want %v", err, wantErr)
	}
	tr.SetInitError(nil)
	if _, err := tr.Init(); err != nil {
		t.Fatalf("Init failed after clearing error: %v", err)
	}
}
