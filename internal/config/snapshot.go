package config

import (
	"fmt"
	"strconv"
)

// DefaultFrameBytesCeiling bounds the conversion buffer when the
// snapshot does not override it (1080p BGR).
const DefaultFrameBytesCeiling = 1920 * 1080 * 3

// Snapshot is one complete set of user-tunable camera parameters. The
// driver treats it as a value: every reconfiguration delivers a full
// copy, and the driver commits its own (possibly rolled back) copy as
// the new baseline for future diffs.
type Snapshot struct {
	// Device selection. Vendor and product are parsed base-0 so hex
	// (0x046d) and decimal both work; zero matches any. An empty
	// serial matches any serial; index picks the n-th match.
	Vendor  string `toml:"vendor" json:"vendor"`
	Product string `toml:"product" json:"product"`
	Serial  string `toml:"serial" json:"serial"`
	Index   int    `toml:"index" json:"index"`

	// Stream setup. Changing any of these while streaming forces a
	// device close and renegotiation.
	Width     int    `toml:"width" json:"width"`
	Height    int    `toml:"height" json:"height"`
	FrameRate int    `toml:"frame_rate" json:"frame_rate"`
	VideoMode string `toml:"video_mode" json:"video_mode"`

	// Camera controls, applied field by field to an open device.
	// ExposureAbsolute is in seconds; the device takes ten-thousandths.
	ExposureAbsolute     float64 `toml:"exposure_absolute" json:"exposure_absolute"`
	AutoExposure         int     `toml:"auto_exposure" json:"auto_exposure"`
	AutoExposurePriority int     `toml:"auto_exposure_priority" json:"auto_exposure_priority"`
	AutoFocus            bool    `toml:"auto_focus" json:"auto_focus"`
	Focus                int     `toml:"focus_absolute" json:"focus_absolute"`
	Gain                 int     `toml:"gain" json:"gain"`
	Brightness           int     `toml:"brightness" json:"brightness"`
	Iris                 int     `toml:"iris_absolute" json:"iris_absolute"`
	ScanningMode         int     `toml:"scanning_mode" json:"scanning_mode"`
	Pan                  int     `toml:"pan_absolute" json:"pan_absolute"`
	Tilt                 int     `toml:"tilt_absolute" json:"tilt_absolute"`

	// WhiteBalanceTemperature is ingest-only: the device reports it
	// through status events and the driver records it, but never
	// pushes it back.
	WhiteBalanceTemperature int `toml:"white_balance_temperature" json:"white_balance_temperature"`

	// Published image metadata.
	FrameID       string `toml:"frame_id" json:"frame_id"`
	CameraInfoURL string `toml:"camera_info_url" json:"camera_info_url"`

	// FrameBytesCeiling caps the per-frame output allocation. Zero
	// means DefaultFrameBytesCeiling.
	FrameBytesCeiling int `toml:"frame_bytes_ceiling" json:"frame_bytes_ceiling"`
}

// Default returns the snapshot used when no configuration file exists.
func Default() Snapshot {
	return Snapshot{
		Vendor:       "0x0",
		Product:      "0x0",
		Width:        640,
		Height:       480,
		FrameRate:    15,
		VideoMode:    "uncompressed",
		AutoExposure: 3,
		AutoFocus:    true,
		FrameID:      "camera",
	}
}

// VendorID parses the vendor selector.
func (s *Snapshot) VendorID() (uint16, error) {
	return parseUSBID(s.Vendor)
}

// ProductID parses the product selector.
func (s *Snapshot) ProductID() (uint16, error) {
	return parseUSBID(s.Product)
}

func parseUSBID(v string) (uint16, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("usb id %q: %w", v, err)
	}
	if n < 0 || n > 0xffff {
		return 0, fmt.Errorf("usb id %q out of range", v)
	}
	return uint16(n), nil
}

// Ceiling returns the effective frame byte ceiling.
func (s *Snapshot) Ceiling() int {
	if s.FrameBytesCeiling > 0 {
		return s.FrameBytesCeiling
	}
	return DefaultFrameBytesCeiling
}

// Validate rejects snapshots the driver could never apply. It covers
// structural problems only; whether the device accepts the values is
// the driver's runtime concern.
func (s *Snapshot) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("stream size %dx%d not positive", s.Width, s.Height)
	}
	if s.FrameRate <= 0 {
		return fmt.Errorf("frame rate %d not positive", s.FrameRate)
	}
	if _, err := s.VendorID(); err != nil {
		return err
	}
	if _, err := s.ProductID(); err != nil {
		return err
	}
	if s.ExposureAbsolute < 0 {
		return fmt.Errorf("exposure %v negative", s.ExposureAbsolute)
	}
	if s.AutoExposure < 0 || s.AutoExposure > 3 {
		return fmt.Errorf("auto exposure mode %d outside 0..3", s.AutoExposure)
	}
	return nil
}
