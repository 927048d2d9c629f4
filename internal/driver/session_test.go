package driver

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/pkg/uvc"
	"github.com/openuvc/uvcnode/pkg/uvc/uvcsim"
)

func waitDriverError(t *testing.T, ch <-chan events.DriverErrorEvent) events.DriverErrorEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no driver error event")
		return events.DriverErrorEvent{}
	}
}

func TestNegotiationFailureUnwindsAndDumpsDiagnostics(t *testing.T) {
	cam := uvcsim.NewCamera(simDesc())
	cam.SetNegotiateError(errors.New("no matching format"))
	fx := newFixture(baseSnapshot(), cam)

	errs := make(chan events.DriverErrorEvent, 4)
	unsub := fx.bus.Subscribe(func(e events.DriverErrorEvent) { errs <- e })
	defer unsub()

	running, err := fx.driver.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if running {
		t.Fatal("Start() = true with failing negotiation")
	}
	defer fx.driver.Stop()

	if got := fx.driver.State(); got != StateStopped {
		t.Errorf("State() = %s, want stopped", got)
	}
	if got := cam.DiagRequests(); got != 1 {
		t.Errorf("DiagRequests() = %d, want 1 capability dump", got)
	}
	if cam.Opened() {
		t.Error("handle still open after unwind")
	}
	if got := cam.UnrefCount(); got != 1 {
		t.Errorf("UnrefCount() = %d, want 1", got)
	}
	if e := waitDriverError(t, errs); e.Code != ErrCodeNegotiation {
		t.Errorf("error code = %s, want %s", e.Code, ErrCodeNegotiation)
	}
}

func TestStreamStartFailureUnwinds(t *testing.T) {
	cam := uvcsim.NewCamera(simDesc())
	cam.SetStreamError(errors.New("bandwidth exceeded"))
	fx := newFixture(baseSnapshot(), cam)

	running, err := fx.driver.Start()
	if err != nil || running {
		t.Fatalf("Start() = %v, %v; want stopped without error", running, err)
	}
	defer fx.driver.Stop()

	if cam.Opened() {
		t.Error("handle still open after unwind")
	}
	if got := cam.UnrefCount(); got != 1 {
		t.Errorf("UnrefCount() = %d, want 1", got)
	}
	if got := cam.DiagRequests(); got != 0 {
		t.Errorf("DiagRequests() = %d, want none for a stream start failure", got)
	}
}

func TestAccessDeniedCarriesBusAndAddress(t *testing.T) {
	cam := uvcsim.NewCamera(simDesc())
	cam.SetOpenError(fmt.Errorf("claim interface: %w", uvc.ErrAccess))
	fx := newFixture(baseSnapshot(), cam)

	errs := make(chan events.DriverErrorEvent, 4)
	unsub := fx.bus.Subscribe(func(e events.DriverErrorEvent) { errs <- e })
	defer unsub()

	if _, err := fx.driver.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer fx.driver.Stop()

	e := waitDriverError(t, errs)
	if e.Code != ErrCodeAccessDenied {
		t.Errorf("error code = %s, want %s", e.Code, ErrCodeAccessDenied)
	}
	if !strings.Contains(e.Message, "bus 1") || !strings.Contains(e.Message, "address 4") {
		t.Errorf("error message %q missing bus/address", e.Message)
	}
	if got := cam.UnrefCount(); got != 1 {
		t.Errorf("UnrefCount() = %d, want 1", got)
	}
}

func TestDeviceSelectionBySerialAndIndex(t *testing.T) {
	first := uvcsim.NewCamera(uvc.DeviceInfo{VendorID: 0x046d, ProductID: 0x0825, Serial: "CAM001"})
	second := uvcsim.NewCamera(uvc.DeviceInfo{VendorID: 0x046d, ProductID: 0x0825, Serial: "CAM002"})

	t.Run("serial", func(t *testing.T) {
		snap := baseSnapshot()
		snap.Serial = "CAM002"
		fx := newFixture(snap, first, second)
		running, err := fx.driver.Start()
		if err != nil || !running {
			t.Fatalf("Start() = %v, %v", running, err)
		}
		defer fx.driver.Stop()
		if !second.Opened() || first.Opened() {
			t.Errorf("opened first=%v second=%v, want the serial match", first.Opened(), second.Opened())
		}
	})

	t.Run("index", func(t *testing.T) {
		snap := baseSnapshot()
		snap.Index = 1
		fx := newFixture(snap, first, second)
		running, err := fx.driver.Start()
		if err != nil || !running {
			t.Fatalf("Start() = %v, %v", running, err)
		}
		defer fx.driver.Stop()
		if !second.Opened() || first.Opened() {
			t.Errorf("opened first=%v second=%v, want index 1", first.Opened(), second.Opened())
		}
	})
}

func TestUnknownVideoModeFallsBackToUncompressed(t *testing.T) {
	cam := uvcsim.NewCamera(simDesc())
	snap := baseSnapshot()
	snap.VideoMode = "h265"
	fx := newFixture(snap, cam)

	running, err := fx.driver.Start()
	if err != nil || !running {
		t.Fatalf("Start() = %v, %v", running, err)
	}
	defer fx.driver.Stop()

	if p := cam.Negotiated(); p.Format != uvc.FormatUncompressed {
		t.Errorf("negotiated format = %s, want uncompressed fallback", p.Format)
	}
}

func TestDeviceNotFoundForWrongSelector(t *testing.T) {
	cam := uvcsim.NewCamera(simDesc())
	snap := baseSnapshot()
	snap.Product = "0xffff"
	fx := newFixture(snap, cam)

	errs := make(chan events.DriverErrorEvent, 4)
	unsub := fx.bus.Subscribe(func(e events.DriverErrorEvent) { errs <- e })
	defer unsub()

	running, err := fx.driver.Start()
	if err != nil || running {
		t.Fatalf("Start() = %v, %v; want stopped without error", running, err)
	}
	defer fx.driver.Stop()

	if e := waitDriverError(t, errs); e.Code != ErrCodeNotFound {
		t.Errorf("error code = %s, want %s", e.Code, ErrCodeNotFound)
	}
	if got := cam.UnrefCount(); got != 0 {
		t.Errorf("UnrefCount() = %d for a device never resolved, want 0", got)
	}
}
