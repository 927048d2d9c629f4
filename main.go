package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/openuvc/uvcnode/cmd"
	"github.com/openuvc/uvcnode/internal/api"
	"github.com/openuvc/uvcnode/internal/camerainfo"
	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/devices"
	"github.com/openuvc/uvcnode/internal/driver"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/logging"
	uvcnats "github.com/openuvc/uvcnode/internal/nats"
	"github.com/openuvc/uvcnode/internal/reconfig"
	"github.com/openuvc/uvcnode/internal/sink"
	"github.com/openuvc/uvcnode/pkg/uvc"
	"github.com/openuvc/uvcnode/pkg/uvc/uvcsim"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8080" toml:"server.port" env:"SERVER_PORT"`

	// Camera settings
	SnapshotFile  string `help:"Camera parameter snapshot file" default:"camera.toml" toml:"camera.snapshot_file" env:"CAMERA_SNAPSHOT_FILE"`
	Transport     string `help:"Camera transport backend (sim)" default:"sim" toml:"camera.transport" env:"CAMERA_TRANSPORT"`
	WatchSnapshot bool   `help:"Reload the snapshot file on change" default:"true" toml:"camera.watch_snapshot" env:"CAMERA_WATCH_SNAPSHOT"`
	Hotplug       bool   `help:"Retry the camera on USB hotplug events" default:"true" toml:"camera.hotplug" env:"CAMERA_HOTPLUG"`

	// NATS settings
	NATSEmbedded bool   `help:"Run an embedded NATS server" default:"true" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NATSUrl      string `help:"External NATS server URL (disables embedded)" default:"" toml:"nats.url" env:"NATS_URL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDriver     string `help:"Driver logging level" default:"info" toml:"logging.driver" env:"LOGGING_DRIVER"`
	LoggingConfig     string `help:"Configuration logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingCameraInfo string `help:"Camera info logging level" default:"info" toml:"logging.camerainfo" env:"LOGGING_CAMERAINFO"`
	LoggingSink       string `help:"Sink logging level" default:"info" toml:"logging.sink" env:"LOGGING_SINK"`
	LoggingNATS       string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingDevices    string `help:"Devices logging level" default:"info" toml:"logging.devices" env:"LOGGING_DEVICES"`
}

// deferredPusher bridges the construction cycle between the driver and
// the configuration server: the driver wants a pusher at creation, the
// configuration server wants the driver. Set is called before the
// driver starts, so Push never observes a nil target while streaming.
type deferredPusher struct {
	rc *reconfig.Server
}

func (p *deferredPusher) Push(s config.Snapshot) {
	if p.rc != nil {
		p.rc.Push(s)
	}
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadOptions(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"driver":     opts.LoggingDriver,
				"config":     opts.LoggingConfig,
				"camerainfo": opts.LoggingCameraInfo,
				"sink":       opts.LoggingSink,
				"nats":       opts.LoggingNATS,
				"api":        opts.LoggingAPI,
				"devices":    opts.LoggingDevices,
			},
		})
		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling, and feed it
		// every log line for the /api/logs/stream subscribers.
		eventBus := events.New()
		var logSeq atomic.Uint64
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		snap, snapErr := config.LoadSnapshot(opts.SnapshotFile)
		if snapErr != nil {
			logger.Warn("Snapshot file unusable, starting from defaults", "error", snapErr)
		}

		// Camera transport. Only the simulated backend ships; a USB
		// binding plugs in here as another uvc.Transport.
		var transport uvc.Transport
		switch opts.Transport {
		case "sim":
			cam := uvcsim.NewCamera(uvc.DeviceInfo{
				VendorID:  0x046d,
				ProductID: 0x0825,
				Serial:    "SIM0001",
				Product:   "Simulated UVC Camera",
				Bus:       1,
				Address:   2,
			})
			if snap.FrameRate > 0 {
				cam.FrameInterval = time.Second / time.Duration(snap.FrameRate)
			}
			transport = uvcsim.New(cam)
		default:
			logger.Error("Unknown camera transport", "transport", opts.Transport)
			os.Exit(1)
		}

		// Message broker: embedded server, external URL, or neither.
		var natsServer *uvcnats.Server
		natsURL := opts.NATSUrl
		if natsURL == "" && opts.NATSEmbedded {
			serverOpts := uvcnats.DefaultServerOptions()
			serverOpts.Port = opts.NATSPort
			serverOpts.Logger = logging.GetLogger("nats")
			natsServer = uvcnats.NewServer(serverOpts)
			natsURL = natsServer.ClientURL()
		}

		var natsClient *uvcnats.Client
		var bridge *uvcnats.Bridge
		if natsURL != "" {
			natsClient = uvcnats.NewClient(natsURL, snap.FrameID, logging.GetLogger("nats"))
			bridge = uvcnats.NewBridge(natsURL, eventBus, logging.GetLogger("nats"))
		}

		sinks := []sink.Sink{sink.NewBusSink(eventBus)}
		if natsClient != nil {
			sinks = append(sinks, sink.NewNATSSink(natsClient))
		}
		frameSink := sink.NewMultiSink(sinks...)

		infoManager := camerainfo.NewManager(snap.FrameID)
		pusher := &deferredPusher{}
		drv := driver.New(driver.Options{
			Transport: transport,
			Sink:      frameSink,
			Info:      infoManager,
			Bus:       eventBus,
			Pusher:    pusher,
			Snapshot:  snap,
		})
		rc := reconfig.New(opts.SnapshotFile, snap, drv, eventBus)
		pusher.rc = rc

		if natsClient != nil {
			natsClient.OnRestart(func() { rc.Restart("nats_restart") })
		}

		var watcher *config.Watcher
		if opts.WatchSnapshot && opts.SnapshotFile != "" {
			watcher = config.NewWatcher(opts.SnapshotFile, 500*time.Millisecond, logging.GetLogger("config"))
			watcher.OnReload(func(s config.Snapshot) {
				if _, err := rc.Update(s, "file"); err != nil {
					logger.Warn("Rejected snapshot file edit", "error", err)
				}
			})
		}

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Driver:       drv,
			Reconfig:     rc,
			EventBus:     eventBus,
			Info:         infoManager,
		}
		if natsClient != nil {
			apiOpts.Broker = natsClient
		}
		server := api.NewServer(apiOpts)

		var hotplug *devices.Hotplug
		hooks.OnStart(func() {
			if natsServer != nil {
				if startErr := natsServer.Start(); startErr != nil {
					logger.Error("Failed to start embedded NATS server", "error", startErr)
					os.Exit(1)
				}
			}
			if natsClient != nil {
				if connErr := natsClient.Connect(); connErr != nil {
					logger.Warn("NATS connect failed, publishing degraded", "error", connErr)
				}
			}
			if bridge != nil {
				if bridgeErr := bridge.Start(); bridgeErr != nil {
					logger.Warn("Event bridge unavailable", "error", bridgeErr)
				}
			}
			if watcher != nil {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Snapshot file watching disabled", "error", watchErr)
				}
			}
			if opts.Hotplug {
				h, hotplugErr := devices.StartHotplug(eventBus, func() {
					if drv.State() != driver.StateRunning {
						rc.Restart("hotplug")
					}
				})
				if hotplugErr != nil {
					logger.Warn("USB hotplug monitoring disabled", "error", hotplugErr)
				} else {
					hotplug = h
				}
			}

			running, startErr := drv.Start()
			if startErr != nil {
				logger.Error("Failed to start camera driver", "error", startErr)
				os.Exit(1)
			}
			if running {
				logger.Info("Camera streaming")
			} else {
				logger.Info("No camera opened, waiting for configuration or hotplug")
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if srvErr := server.Start(opts.Port); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", srvErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if hotplug != nil {
				hotplug.Stop()
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping snapshot watcher", "error", stopErr)
				}
			}
			if drv.State() != driver.StateInitial {
				drv.Stop()
			}
			if bridge != nil {
				bridge.Stop()
			}
			if natsClient != nil {
				natsClient.Close()
			}
			rc.Close()
			if closeErr := frameSink.Close(); closeErr != nil {
				logger.Warn("Error closing frame sink", "error", closeErr)
			}
			if natsServer != nil {
				natsServer.Stop()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateCheckCmd())

	// Run the CLI
	cli.Run()
}
