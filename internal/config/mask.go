package config

import "strings"

// ChangeMask summarizes which snapshot field groups differ between two
// snapshots. The driver only needs group granularity: device and
// stream changes force a renegotiation, everything else applies in
// place.
type ChangeMask uint32

// Field groups.
const (
	MaskDevice     ChangeMask = 1 << iota // vendor, product, serial, index
	MaskStream                            // width, height, frame rate, video mode
	MaskControls                          // any pushable control field
	MaskCameraInfo                        // calibration URL
	MaskMeta                              // frame id, ceiling
)

// MaskAll marks every group changed. The startup path uses it to force
// a full apply.
const MaskAll = MaskDevice | MaskStream | MaskControls | MaskCameraInfo | MaskMeta

// RequiresReopen reports whether the change cannot be applied to an
// open stream.
func (m ChangeMask) RequiresReopen() bool {
	return m&(MaskDevice|MaskStream) != 0
}

func (m ChangeMask) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, g := range []struct {
		bit  ChangeMask
		name string
	}{
		{MaskDevice, "device"},
		{MaskStream, "stream"},
		{MaskControls, "controls"},
		{MaskCameraInfo, "camera_info"},
		{MaskMeta, "meta"},
	} {
		if m&g.bit != 0 {
			parts = append(parts, g.name)
		}
	}
	return strings.Join(parts, "|")
}

// Diff computes the change mask between two snapshots.
func Diff(old, next *Snapshot) ChangeMask {
	var m ChangeMask
	if old.Vendor != next.Vendor || old.Product != next.Product ||
		old.Serial != next.Serial || old.Index != next.Index {
		m |= MaskDevice
	}
	if old.Width != next.Width || old.Height != next.Height ||
		old.FrameRate != next.FrameRate || old.VideoMode != next.VideoMode {
		m |= MaskStream
	}
	if controlsDiffer(old, next) {
		m |= MaskControls
	}
	if old.CameraInfoURL != next.CameraInfoURL {
		m |= MaskCameraInfo
	}
	if old.FrameID != next.FrameID || old.FrameBytesCeiling != next.FrameBytesCeiling {
		m |= MaskMeta
	}
	return m
}

func controlsDiffer(a, b *Snapshot) bool {
	return a.ExposureAbsolute != b.ExposureAbsolute ||
		a.AutoExposure != b.AutoExposure ||
		a.AutoExposurePriority != b.AutoExposurePriority ||
		a.AutoFocus != b.AutoFocus ||
		a.Focus != b.Focus ||
		a.Gain != b.Gain ||
		a.Brightness != b.Brightness ||
		a.Iris != b.Iris ||
		a.ScanningMode != b.ScanningMode ||
		a.Pan != b.Pan ||
		a.Tilt != b.Tilt
}
