package driver

import (
	"encoding/binary"
	"time"

	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/metrics"
	"github.com/openuvc/uvcnode/pkg/uvc"
)

// controlEntry describes one independently settable camera control.
// apply returns the device-level values it wrote so rejections can be
// logged with what the hardware actually saw; revert restores the field
// in the snapshot-to-be-committed when the device refuses the write.
type controlEntry struct {
	name    string
	changed func(old, next *config.Snapshot) bool
	apply   func(h uvc.Handle, next *config.Snapshot) ([]int64, error)
	revert  func(dst, old *config.Snapshot)
}

// controlTable lists every pushable control in device application
// order. Pan and tilt share one entry: the device takes them in a
// single transfer, so a rejection reverts both.
var controlTable = []controlEntry{
	{
		name:    "scanning_mode",
		changed: func(o, n *config.Snapshot) bool { return o.ScanningMode != n.ScanningMode },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			v := uint8(n.ScanningMode)
			return []int64{int64(v)}, h.SetScanningMode(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.ScanningMode = old.ScanningMode },
	},
	{
		name:    "auto_exposure",
		changed: func(o, n *config.Snapshot) bool { return o.AutoExposure != n.AutoExposure },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			// The device takes a mode bitmask, not the mode number.
			v := uint8(1 << n.AutoExposure)
			return []int64{int64(v)}, h.SetAEMode(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.AutoExposure = old.AutoExposure },
	},
	{
		name:    "auto_exposure_priority",
		changed: func(o, n *config.Snapshot) bool { return o.AutoExposurePriority != n.AutoExposurePriority },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			v := uint8(n.AutoExposurePriority)
			return []int64{int64(v)}, h.SetAEPriority(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.AutoExposurePriority = old.AutoExposurePriority },
	},
	{
		name:    "exposure_absolute",
		changed: func(o, n *config.Snapshot) bool { return o.ExposureAbsolute != n.ExposureAbsolute },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			// Seconds to device ten-thousandths, truncated.
			v := uint32(n.ExposureAbsolute * 10000)
			return []int64{int64(v)}, h.SetExposureAbs(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.ExposureAbsolute = old.ExposureAbsolute },
	},
	{
		name:    "auto_focus",
		changed: func(o, n *config.Snapshot) bool { return o.AutoFocus != n.AutoFocus },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			var v int64
			if n.AutoFocus {
				v = 1
			}
			return []int64{v}, h.SetFocusAuto(n.AutoFocus)
		},
		revert: func(dst, old *config.Snapshot) { dst.AutoFocus = old.AutoFocus },
	},
	{
		name:    "focus_absolute",
		changed: func(o, n *config.Snapshot) bool { return o.Focus != n.Focus },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			v := uint16(n.Focus)
			return []int64{int64(v)}, h.SetFocusAbs(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.Focus = old.Focus },
	},
	{
		name:    "gain",
		changed: func(o, n *config.Snapshot) bool { return o.Gain != n.Gain },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			v := uint16(n.Gain)
			return []int64{int64(v)}, h.SetGain(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.Gain = old.Gain },
	},
	{
		name:    "iris_absolute",
		changed: func(o, n *config.Snapshot) bool { return o.Iris != n.Iris },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			v := uint16(n.Iris)
			return []int64{int64(v)}, h.SetIrisAbs(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.Iris = old.Iris },
	},
	{
		name:    "brightness",
		changed: func(o, n *config.Snapshot) bool { return o.Brightness != n.Brightness },
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			v := int16(n.Brightness)
			return []int64{int64(v)}, h.SetBrightness(v)
		},
		revert: func(dst, old *config.Snapshot) { dst.Brightness = old.Brightness },
	},
	{
		name: "pantilt_absolute",
		changed: func(o, n *config.Snapshot) bool {
			return o.Pan != n.Pan || o.Tilt != n.Tilt
		},
		apply: func(h uvc.Handle, n *config.Snapshot) ([]int64, error) {
			pan, tilt := int32(n.Pan), int32(n.Tilt)
			return []int64{int64(pan), int64(tilt)}, h.SetPanTiltAbs(pan, tilt)
		},
		revert: func(dst, old *config.Snapshot) {
			dst.Pan = old.Pan
			dst.Tilt = old.Tilt
		},
	},
}

// pushControlsLocked writes every control whose value differs between
// the committed baseline and next. A rejected write warns, reverts the
// field in next, and moves on; it never aborts the batch.
func (d *Driver) pushControlsLocked(next *config.Snapshot) {
	old := &d.cfg
	for _, c := range controlTable {
		if !c.changed(old, next) {
			continue
		}
		values, err := c.apply(d.session.handle, next)
		ts := time.Now().UTC().Format(time.RFC3339Nano)
		if err != nil {
			d.logger.Warn("device rejected control",
				"control", c.name, "values", values, "error", err)
			c.revert(next, old)
			metrics.ControlWrite(c.name, true)
			d.bus.Publish(events.ControlWriteEvent{
				Control:   c.name,
				Values:    values,
				Rejected:  true,
				Timestamp: ts,
			})
			continue
		}
		d.logger.Info("control applied", "control", c.name, "values", values)
		metrics.ControlWrite(c.name, false)
		d.bus.Publish(events.ControlWriteEvent{
			Control:   c.name,
			Values:    values,
			Timestamp: ts,
		})
	}
}

// handleStatus ingests one device-originated status interrupt. Only
// value-change events of known (class, selector) pairs touch the
// snapshot; each recognized pair updates exactly one field and marks
// the snapshot dirty so the next published frame pushes it back to the
// configuration source.
func (d *Driver) handleStatus(e uvc.StatusEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e.Attribute != uvc.StatusAttributeValueChange {
		return
	}
	switch e.Class {
	case uvc.StatusClassControlCamera:
		if e.Selector != uvc.SelectorExposureTimeAbsolute || len(e.Data) < 4 {
			return
		}
		raw := binary.LittleEndian.Uint32(e.Data)
		d.cfg.ExposureAbsolute = float64(raw) * 0.0001
		d.dirty = true
		metrics.StatusEvent("camera")
		d.logger.Debug("device adjusted exposure", "seconds", d.cfg.ExposureAbsolute)
		d.bus.Publish(events.StatusIngestedEvent{
			Control:   "exposure_absolute",
			Value:     d.cfg.ExposureAbsolute,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	case uvc.StatusClassControlProcessing:
		if e.Selector != uvc.SelectorWhiteBalanceTemperature || len(e.Data) < 2 {
			return
		}
		raw := binary.LittleEndian.Uint16(e.Data)
		d.cfg.WhiteBalanceTemperature = int(raw)
		d.dirty = true
		metrics.StatusEvent("processing")
		d.logger.Debug("device adjusted white balance", "kelvin", d.cfg.WhiteBalanceTemperature)
		d.bus.Publish(events.StatusIngestedEvent{
			Control:   "white_balance_temperature",
			Value:     float64(raw),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
