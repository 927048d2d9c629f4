package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openuvc/uvcnode/internal/metrics"
)

// registerStatusRoutes registers the driver status endpoint.
func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Driver Status",
		Description: "Current driver state, open device, stream parameters, and pipeline counters",
		Tags:        []string{"driver"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*StatusResponse, error) {
		snap := s.opts.Reconfig.Snapshot()
		data := StatusData{
			State: s.opts.Driver.State().String(),
			Stream: StreamData{
				Width:     snap.Width,
				Height:    snap.Height,
				FrameRate: snap.FrameRate,
				VideoMode: snap.VideoMode,
				FrameID:   snap.FrameID,
			},
			Calibrated: s.opts.Info.Calibrated(),
			Stats:      metrics.GetDriverStats(),
		}
		if info, ok := s.opts.Driver.DeviceInfo(); ok {
			data.Device = &DeviceData{
				Vendor:  fmt.Sprintf("%#06x", info.VendorID),
				Product: fmt.Sprintf("%#06x", info.ProductID),
				Serial:  info.Serial,
				Name:    info.Product,
				Bus:     info.Bus,
				Address: info.Address,
			}
		}
		if s.opts.Broker != nil {
			data.BrokerConnected = s.opts.Broker.IsConnected()
		}
		return &StatusResponse{Body: data}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "restart-session",
		Method:      http.MethodPost,
		Path:        "/api/restart",
		Summary:     "Restart Device Session",
		Description: "Close and reopen the camera with the current configuration",
		Tags:        []string{"driver"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*RestartResponse, error) {
		s.opts.Reconfig.Restart("api_restart")
		return &RestartResponse{
			Body: RestartData{State: s.opts.Driver.State().String()},
		}, nil
	})
}

// registerConfigRoutes registers the snapshot get/put endpoints.
func (s *Server) registerConfigRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-config",
		Method:      http.MethodGet,
		Path:        "/api/config",
		Summary:     "Get Configuration",
		Description: "The committed configuration snapshot, reflecting any device-side rollbacks",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, input *struct{}) (*ConfigResponse, error) {
		return &ConfigResponse{Body: s.opts.Reconfig.Snapshot()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "update-config",
		Method:      http.MethodPut,
		Path:        "/api/config",
		Summary:     "Update Configuration",
		Description: "Apply a full configuration snapshot. Stream or device selector changes " +
			"restart the camera session; the response is the committed snapshot, which may " +
			"differ where the device rejected control values.",
		Tags:        []string{"configuration"},
		Security:    withAuth(),
		Errors:      []int{401, 422},
	}, func(ctx context.Context, input *UpdateConfigInput) (*ConfigResponse, error) {
		committed, err := s.opts.Reconfig.Update(input.Body, "api")
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("invalid configuration", err)
		}
		return &ConfigResponse{Body: committed}, nil
	})
}

// registerDeviceRoutes registers camera enumeration.
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Cameras",
		Description: "Enumerate cameras visible to the transport",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 503},
	}, func(ctx context.Context, input *struct{}) (*DevicesResponse, error) {
		devs, err := s.opts.Driver.Devices()
		if err != nil {
			return nil, huma.Error503ServiceUnavailable("device enumeration unavailable", err)
		}
		return &DevicesResponse{Body: DevicesData{Devices: devs}}, nil
	})
}
