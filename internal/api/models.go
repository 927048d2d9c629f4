package api

import (
	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/metrics"
	"github.com/openuvc/uvcnode/internal/version"
	"github.com/openuvc/uvcnode/pkg/uvc"
)

// HealthData is the health check payload.
type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check payload.
type HealthResponse struct {
	Body HealthData
}

// VersionResponse wraps build metadata.
type VersionResponse struct {
	Body version.Info
}

// DeviceData describes the open camera in the status payload.
type DeviceData struct {
	Vendor  string `json:"vendor" example:"0x046d" doc:"USB vendor identifier"`
	Product string `json:"product" example:"0x0825" doc:"USB product identifier"`
	Serial  string `json:"serial,omitempty" doc:"Device serial number"`
	Name    string `json:"name,omitempty" doc:"Product name from the device descriptor"`
	Bus     uint8  `json:"bus" doc:"USB bus number"`
	Address uint8  `json:"address" doc:"USB device address"`
}

// StatusData is the driver status payload.
type StatusData struct {
	State           string              `json:"state" example:"running" doc:"Driver lifecycle state"`
	Device          *DeviceData         `json:"device,omitempty" doc:"Open camera, present while running"`
	Stream          StreamData          `json:"stream" doc:"Negotiated stream parameters"`
	Calibrated      bool                `json:"calibrated" doc:"Whether a calibration file is loaded"`
	BrokerConnected bool                `json:"broker_connected" doc:"Whether the NATS sink is connected"`
	Stats           metrics.DriverStats `json:"stats" doc:"Counters since process start"`
}

// StreamData summarizes the configured stream.
type StreamData struct {
	Width     int    `json:"width" example:"1280"`
	Height    int    `json:"height" example:"720"`
	FrameRate int    `json:"frame_rate" example:"30"`
	VideoMode string `json:"video_mode" example:"uncompressed"`
	FrameID   string `json:"frame_id" example:"camera"`
}

// StatusResponse wraps the status payload.
type StatusResponse struct {
	Body StatusData
}

// ConfigResponse wraps a configuration snapshot.
type ConfigResponse struct {
	Body config.Snapshot
}

// UpdateConfigInput carries a full snapshot for PUT /api/config.
type UpdateConfigInput struct {
	Body config.Snapshot
}

// DevicesData is the device enumeration payload.
type DevicesData struct {
	Devices []uvc.DeviceInfo `json:"devices" doc:"Cameras visible to the transport"`
}

// DevicesResponse wraps the device list.
type DevicesResponse struct {
	Body DevicesData
}

// RestartData reports the restart outcome.
type RestartData struct {
	State string `json:"state" example:"running" doc:"Driver state after the restart"`
}

// RestartResponse wraps the restart payload.
type RestartResponse struct {
	Body RestartData
}
