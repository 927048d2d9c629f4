// Package camerainfo loads and serves camera calibration data.
//
// Calibration files are YAML documents produced by standard camera
// calibration tools. The manager keeps the parsed calibration in memory
// and stamps it onto every published frame; an uncalibrated camera gets
// a zeroed calibration carrying only the frame dimensions.
package camerainfo

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/openuvc/uvcnode/internal/logging"
)

// Matrix is a row-major matrix as stored in calibration files.
type Matrix struct {
	Rows int       `yaml:"rows" json:"rows"`
	Cols int       `yaml:"cols" json:"cols"`
	Data []float64 `yaml:"data" json:"data"`
}

// CameraInfo is the calibration payload published alongside each frame.
type CameraInfo struct {
	ImageWidth             int    `yaml:"image_width" json:"image_width"`
	ImageHeight            int    `yaml:"image_height" json:"image_height"`
	CameraName             string `yaml:"camera_name" json:"camera_name"`
	CameraMatrix           Matrix `yaml:"camera_matrix" json:"camera_matrix"`
	DistortionModel        string `yaml:"distortion_model" json:"distortion_model"`
	DistortionCoefficients Matrix `yaml:"distortion_coefficients" json:"distortion_coefficients"`
	RectificationMatrix    Matrix `yaml:"rectification_matrix" json:"rectification_matrix"`
	ProjectionMatrix       Matrix `yaml:"projection_matrix" json:"projection_matrix"`
}

// Manager holds the current calibration and swaps it when the
// configured URL changes. Safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	logger     *slog.Logger
	name       string
	url        string
	info       CameraInfo
	calibrated bool
	warned     bool
}

// NewManager creates a manager for the named camera with no calibration
// loaded.
func NewManager(name string) *Manager {
	return &Manager{
		logger: logging.GetLogger("camerainfo"),
		name:   name,
	}
}

// SetURL loads the calibration referenced by url and makes it current.
// An empty url clears the calibration. On load failure the previous
// calibration is dropped and the camera runs uncalibrated; the error is
// returned so callers can surface it.
func (m *Manager) SetURL(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.url = url
	m.info = CameraInfo{}
	m.calibrated = false
	m.warned = false

	if url == "" {
		m.logger.Info("no calibration configured, publishing uncalibrated info")
		return nil
	}

	info, err := Load(url)
	if err != nil {
		m.logger.Warn("calibration load failed", "url", url, "error", err)
		return err
	}

	m.info = info
	m.calibrated = true
	m.logger.Info("calibration loaded",
		"url", url,
		"camera_name", info.CameraName,
		"size", fmt.Sprintf("%dx%d", info.ImageWidth, info.ImageHeight))
	return nil
}

// URL returns the currently configured calibration URL.
func (m *Manager) URL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.url
}

// Calibrated reports whether a calibration file is loaded.
func (m *Manager) Calibrated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calibrated
}

// Get returns the calibration to publish for a frame of the given size.
// Without a calibration the result carries just the dimensions and the
// camera name. A loaded calibration is returned as-is; a size mismatch
// against the stream is logged once per load.
func (m *Manager) Get(width, height int) CameraInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.calibrated {
		return CameraInfo{
			ImageWidth:  width,
			ImageHeight: height,
			CameraName:  m.name,
		}
	}

	if (m.info.ImageWidth != width || m.info.ImageHeight != height) && !m.warned {
		m.warned = true
		m.logger.Warn("calibration size does not match stream",
			"calibration", fmt.Sprintf("%dx%d", m.info.ImageWidth, m.info.ImageHeight),
			"stream", fmt.Sprintf("%dx%d", width, height))
	}

	info := m.info
	info.CameraMatrix.Data = append([]float64(nil), m.info.CameraMatrix.Data...)
	info.DistortionCoefficients.Data = append([]float64(nil), m.info.DistortionCoefficients.Data...)
	info.RectificationMatrix.Data = append([]float64(nil), m.info.RectificationMatrix.Data...)
	info.ProjectionMatrix.Data = append([]float64(nil), m.info.ProjectionMatrix.Data...)
	return info
}

// Load reads a calibration file. The url may be a plain path or use the
// file:// scheme; other schemes are rejected.
func Load(url string) (CameraInfo, error) {
	path := url
	if strings.Contains(url, "://") {
		var ok bool
		path, ok = strings.CutPrefix(url, "file://")
		if !ok {
			return CameraInfo{}, fmt.Errorf("unsupported calibration URL scheme: %s", url)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return CameraInfo{}, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var info CameraInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return CameraInfo{}, fmt.Errorf("failed to unmarshal calibration YAML: %w", err)
	}

	if info.ImageWidth <= 0 || info.ImageHeight <= 0 {
		return CameraInfo{}, fmt.Errorf("calibration file has invalid dimensions %dx%d", info.ImageWidth, info.ImageHeight)
	}
	return info, nil
}

// Save writes a calibration file next to the given path.
func Save(path string, info CameraInfo) error {
	data, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration to YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write calibration file: %w", err)
	}
	return nil
}
