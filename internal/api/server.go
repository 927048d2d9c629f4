// Package api exposes the node's HTTP control surface: driver status,
// configuration get/put, device enumeration, live event and log streams,
// and Prometheus metrics. It is a thin layer; every state change goes
// through the configuration server, never straight to the driver.
package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/openuvc/uvcnode/internal/camerainfo"
	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/driver"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/logging"
	"github.com/openuvc/uvcnode/internal/metrics"
	"github.com/openuvc/uvcnode/internal/version"
	"github.com/openuvc/uvcnode/pkg/uvc"
)

// Reconfigurer is the slice of the configuration server the API needs.
type Reconfigurer interface {
	Snapshot() config.Snapshot
	Update(next config.Snapshot, source string) (config.Snapshot, error)
	Restart(reason string)
}

// DriverStatus is the slice of the driver the API reads. It never
// mutates the driver directly.
type DriverStatus interface {
	State() driver.State
	DeviceInfo() (uvc.DeviceInfo, bool)
	Devices() ([]uvc.DeviceInfo, error)
}

// BrokerStatus reports message broker connectivity for /api/status.
type BrokerStatus interface {
	IsConnected() bool
}

// Options wires the API server's collaborators.
type Options struct {
	AuthUsername string
	AuthPassword string
	Driver       DriverStatus
	Reconfig     Reconfigurer
	EventBus     *events.Bus
	Info         *camerainfo.Manager
	// Broker is optional; without one the status reports no broker.
	Broker BrokerStatus
}

// Server is the Huma v2 API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	opts       *Options
	logger     *slog.Logger
}

// NewServer creates the API server on Go 1.22+ native routing.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	corsConfig := DefaultCORSConfig()
	AddCORSHandler(mux, corsConfig)

	cfg := huma.DefaultConfig("uvcnode API", version.String())
	cfg.Info.Description = "UVC camera node: device lifecycle, configuration, and frame pipeline control"
	// Relative paths in the OpenAPI doc so any host works.
	cfg.Servers = []*huma.Server{}
	cfg.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, cfg)
	s := &Server{
		api:    api,
		mux:    mux,
		opts:   opts,
		logger: logging.GetLogger("api"),
	}

	api.UseMiddleware(NewCORSMiddleware(corsConfig))
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	// Prometheus scrape endpoint stays outside Huma and outside auth.
	mux.Handle("GET /metrics", metrics.HTTPHandler())

	// The node is headless; the root path lands on the API docs.
	mux.HandleFunc("/{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs", http.StatusTemporaryRedirect)
	})

	s.registerRoutes()
	return s
}

// GetAPI returns the Huma API instance, used by tests.
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start serves HTTP on addr and blocks until shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open SSE streams.
func (s *Server) Stop() error {
	s.logger.Info("stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // no auth
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok"}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{}, // no auth
	}, func(ctx context.Context, input *struct{}) (*VersionResponse, error) {
		return &VersionResponse{Body: version.Get()}, nil
	})

	s.registerStatusRoutes()
	s.registerConfigRoutes()
	s.registerDeviceRoutes()
	s.registerSSERoutes()
	s.registerLogRoutes()
}

// basicAuthMiddleware enforces HTTP basic auth on operations that carry
// a security requirement. SSE clients may pass the base64 credentials
// in an auth query parameter since EventSource cannot set headers.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		var credentials string
		if authHeader := ctx.Header("Authorization"); authHeader != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(authHeader, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format")
				return
			}
			credentials = string(decoded)
		} else if queryAuth := ctx.Query("auth"); queryAuth != "" {
			decoded, err := base64.StdEncoding.DecodeString(queryAuth)
			if err != nil {
				s.unauthorized(ctx, "Invalid credentials format")
				return
			}
			credentials = string(decoded)
		}

		if credentials == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}
		parts := strings.SplitN(credentials, ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}
		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, message string) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="uvcnode API"`)
	huma.WriteErr(s.api, ctx, http.StatusUnauthorized, message)
}

// withAuth returns the security requirement for basic auth.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}
