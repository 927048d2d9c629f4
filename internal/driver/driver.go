// Package driver owns the camera lifecycle: the Initial/Stopped/Running
// state machine, the device session, control parameter sync, and the
// per-frame convert-and-publish path.
//
// Three concurrency sources meet here: the transport's frame delivery
// goroutine, its status event goroutine, and whoever drives start, stop,
// and configuration changes. All of them serialize behind one mutex; the
// entry points additionally hold an operation lock end to end because
// session teardown must release the inner mutex while joining the
// delivery goroutine (an in-flight frame callback blocked on the mutex
// could otherwise never finish, and the join would wait on it forever).
package driver

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openuvc/uvcnode/internal/camerainfo"
	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/logging"
	"github.com/openuvc/uvcnode/internal/metrics"
	"github.com/openuvc/uvcnode/internal/sink"
	"github.com/openuvc/uvcnode/pkg/uvc"
)

// ConfigPusher receives driver-mutated snapshots for re-publication to
// the configuration source. Push runs under the driver lock and must
// not call back into the driver.
type ConfigPusher interface {
	Push(config.Snapshot)
}

// Options wires a Driver's collaborators.
type Options struct {
	Transport uvc.Transport
	Sink      sink.Sink
	Info      *camerainfo.Manager
	Bus       *events.Bus
	// Pusher is optional; without one, status-originated snapshot
	// changes stay local to the driver.
	Pusher ConfigPusher
	// Snapshot is the initial configuration baseline applied by Start.
	Snapshot config.Snapshot
}

// Driver is the camera lifecycle state machine.
type Driver struct {
	// ops serializes Start, Stop, OnConfigurationChanged, and Devices
	// end to end. mu guards the fields below and is the lock the
	// transport callbacks take; closeSessionLocked releases it while
	// joining the delivery goroutine. Lock order: ops before mu.
	ops sync.Mutex
	mu  sync.Mutex

	transport uvc.Transport
	sink      sink.Sink
	info      *camerainfo.Manager
	bus       *events.Bus
	pusher    ConfigPusher
	logger    *slog.Logger

	state      State
	ctx        uvc.Context
	session    *session
	cfg        config.Snapshot
	dirty      bool
	draining   bool
	everOpened bool
	seq        uint32

	lastOversizedWarn time.Time
}

// New creates a driver in the Initial state.
func New(opts Options) *Driver {
	logger := logging.GetLogger("driver")
	return &Driver{
		transport: opts.Transport,
		sink:      opts.Sink,
		info:      opts.Info,
		bus:       opts.Bus,
		pusher:    opts.Pusher,
		logger:    logger,
		cfg:       opts.Snapshot,
		session:   &session{logger: logger},
	}
}

// Start acquires the transport context and applies the pending
// configuration, attempting to reach Running. It returns whether
// Running was reached; failing to open the camera is not an error,
// the driver waits in Stopped for the next configuration change or
// hotplug trigger. Calling Start outside Initial is a contract
// violation and panics.
func (d *Driver) Start() (bool, error) {
	d.ops.Lock()
	defer d.ops.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateInitial {
		panic("driver: Start from " + d.state.String())
	}
	ctx, err := d.transport.Init()
	if err != nil {
		return false, newError(ErrCodeContextInit, "camera transport init failed", err)
	}
	d.ctx = ctx
	d.setStateLocked(StateStopped)

	next := d.cfg
	d.applyConfigLocked(&next, config.MaskAll)
	return d.state == StateRunning, nil
}

// Stop closes any open session, releases the transport context, and
// returns to Initial. Calling Stop from Initial is a contract violation
// and panics; calling it from Stopped is a no-op apart from the context
// release.
func (d *Driver) Stop() {
	d.ops.Lock()
	defer d.ops.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateInitial {
		panic("driver: Stop before Start")
	}
	if d.state == StateRunning {
		d.closeSessionLocked("driver stopping")
	}
	if err := d.ctx.Close(); err != nil {
		d.logger.Warn("transport context close", "error", err)
	}
	d.ctx = nil
	d.setStateLocked(StateInitial)
}

// OnConfigurationChanged reconciles the driver with a new snapshot and
// returns the committed baseline, which may differ from next where the
// device rejected control writes. Before Start it only records the
// snapshot; Start applies it.
func (d *Driver) OnConfigurationChanged(next config.Snapshot, mask config.ChangeMask) config.Snapshot {
	d.ops.Lock()
	defer d.ops.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateInitial {
		d.cfg = next
		return d.cfg
	}
	d.applyConfigLocked(&next, mask)
	return d.cfg
}

// applyConfigLocked is the reconciliation core shared by Start and
// OnConfigurationChanged. Called with both locks held. It commits the
// possibly rolled-back snapshot as the new diff baseline.
func (d *Driver) applyConfigLocked(next *config.Snapshot, mask config.ChangeMask) {
	d.logger.Debug("applying configuration", "changed", mask.String(), "state", d.state.String())

	if mask.RequiresReopen() && d.state == StateRunning {
		d.closeSessionLocked("configuration requires renegotiation")
	}
	if d.state == StateStopped {
		if err := d.openSessionLocked(next); err != nil {
			d.logger.Error("camera open failed, driver stays stopped", "error", err)
			d.publishErrorLocked(err.(*Error))
		}
	}
	if mask&config.MaskCameraInfo != 0 {
		// Best effort; the manager logs its own failures.
		_ = d.info.SetURL(next.CameraInfoURL)
	}
	if d.state == StateRunning {
		d.pushControlsLocked(next)
	}
	d.cfg = *next
}

// OnFrameCaptured handles one captured frame on the transport's
// delivery goroutine. The transport guarantees no invocation after the
// session handle closes, so being called with no session is a protocol
// breach; frames arriving while a teardown is draining are dropped.
func (d *Driver) OnFrameCaptured(f *uvc.Frame) {
	stamp := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.draining {
		metrics.FrameDropped(metrics.DropNotRunning)
		return
	}
	if d.state != StateRunning || d.session.scratch == nil {
		panic("driver: frame callback while not streaming")
	}
	if f == nil || len(f.Data) == 0 {
		d.logger.Debug("dropping frame with empty payload")
		metrics.FrameDropped(metrics.DropEmpty)
		return
	}
	width, height := d.cfg.Width, d.cfg.Height
	if width == 0 || height == 0 {
		d.logger.Debug("dropping frame, stream dimensions unset",
			"width", width, "height", height)
		metrics.FrameDropped(metrics.DropZeroDim)
		return
	}
	want := width * height * 3
	if want > d.cfg.Ceiling() {
		if time.Since(d.lastOversizedWarn) >= time.Second {
			d.lastOversizedWarn = time.Now()
			d.logger.Warn("dropping frames larger than the safety ceiling",
				"bytes", want, "ceiling", d.cfg.Ceiling())
		}
		metrics.FrameDropped(metrics.DropOversize)
		return
	}

	begin := time.Now()
	_, encoding, err := uvc.Convert(f, d.session.scratch[:want])
	metrics.ObserveConvertDuration(time.Since(begin))
	if err != nil {
		d.logger.Warn("frame conversion failed", "format", f.Format.String(), "error", err)
		metrics.FrameDropped(metrics.DropConvert)
		d.publishErrorLocked(newError(ErrCodeConvert, "frame conversion failed", err))
		return
	}

	img := sink.Image{
		FrameID:  d.cfg.FrameID,
		Seq:      d.seq,
		Stamp:    stamp,
		Width:    width,
		Height:   height,
		Step:     width * 3,
		Encoding: encoding,
		TraceID:  uuid.NewString(),
		Data:     d.session.scratch[:want],
		Info:     d.info.Get(width, height),
	}
	if err := d.sink.Publish(&img); err != nil {
		d.logger.Debug("frame publish incomplete", "error", err)
	}
	d.seq++
	metrics.FramePublished(want)

	// Push status-originated snapshot changes back to the configuration
	// source after the publish, never blocking it.
	if d.dirty {
		d.dirty = false
		if d.pusher != nil {
			d.pusher.Push(d.cfg)
		}
	}
}

// State reports the current lifecycle state.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns the committed configuration baseline.
func (d *Driver) Snapshot() config.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// DeviceInfo returns the open device identity while Running.
func (d *Driver) DeviceInfo() (uvc.DeviceInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateRunning || !d.session.isOpen() {
		return uvc.DeviceInfo{}, false
	}
	return d.session.deviceInfo(), true
}

// Devices enumerates cameras visible to the transport. Valid in any
// state past Initial.
func (d *Driver) Devices() ([]uvc.DeviceInfo, error) {
	d.ops.Lock()
	defer d.ops.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil, newError(ErrCodeContextInit, "driver not started", nil)
	}
	return d.ctx.Devices()
}

func (d *Driver) openSessionLocked(next *config.Snapshot) error {
	if err := d.session.open(d.ctx, next, d.OnFrameCaptured, d.handleStatus); err != nil {
		return err
	}
	if d.everOpened {
		metrics.SessionReopened()
	}
	d.everOpened = true
	d.setStateLocked(StateRunning)

	info := d.session.deviceInfo()
	d.bus.Publish(events.DeviceOpenedEvent{
		Vendor:    fmt.Sprintf("%#06x", info.VendorID),
		Product:   fmt.Sprintf("%#06x", info.ProductID),
		Serial:    info.Serial,
		Bus:       info.Bus,
		Address:   info.Address,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	return nil
}

// closeSessionLocked tears the session down. It releases mu while
// joining the transport's delivery goroutine so an in-flight frame
// callback can acquire the lock, observe the drain, and bail out. The
// caller holds ops, so no other operation interleaves through the gap.
func (d *Driver) closeSessionLocked(reason string) {
	d.setStateLocked(StateStopped)
	d.draining = true
	d.mu.Unlock()
	d.session.close()
	d.mu.Lock()
	d.draining = false

	d.logger.Info("camera closed", "reason", reason)
	d.bus.Publish(events.DeviceClosedEvent{
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (d *Driver) setStateLocked(next State) {
	if next == d.state {
		return
	}
	prev := d.state
	d.state = next
	metrics.SetDriverState(int(next))
	d.logger.Info("driver state changed", "from", prev.String(), "to", next.String())
	d.bus.Publish(events.StateChangedEvent{
		From:      prev.String(),
		To:        next.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (d *Driver) publishErrorLocked(err *Error) {
	detail := ""
	if err.Cause != nil {
		detail = err.Cause.Error()
	}
	d.bus.Publish(events.DriverErrorEvent{
		Code:      err.Code,
		Message:   err.Message,
		Detail:    detail,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}
