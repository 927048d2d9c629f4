// Package reconfig is the configuration source the driver reconciles
// against. Every snapshot change, whether it arrives over the API, from
// the snapshot file watcher, or from the device itself, funnels through
// one Server that diffs it against the committed baseline, hands it to
// the driver, and persists whatever the driver actually committed.
package reconfig

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/openuvc/uvcnode/internal/config"
	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/logging"
)

// Driver is the slice of the camera driver the configuration server
// talks to.
type Driver interface {
	// OnConfigurationChanged reconciles the driver with next and returns
	// the committed baseline, which may differ where the device rejected
	// control writes.
	OnConfigurationChanged(next config.Snapshot, mask config.ChangeMask) config.Snapshot
}

// Server owns the configuration snapshot lifecycle.
type Server struct {
	path   string
	driver Driver
	bus    *events.Bus
	logger *slog.Logger

	mu       sync.Mutex
	baseline config.Snapshot

	// pushCh carries driver-originated snapshots out of the frame
	// callback; latest wins when the persister lags.
	pushCh chan config.Snapshot
	done   chan struct{}
	once   sync.Once
}

// New creates a configuration server persisting to the snapshot file at
// path. An empty path disables persistence. The initial baseline must
// match the snapshot the driver was created with.
func New(path string, initial config.Snapshot, drv Driver, bus *events.Bus) *Server {
	s := &Server{
		path:     path,
		driver:   drv,
		bus:      bus,
		logger:   logging.GetLogger("config"),
		baseline: initial,
		pushCh:   make(chan config.Snapshot, 1),
		done:     make(chan struct{}),
	}
	go s.persistLoop()
	return s
}

// Snapshot returns the committed baseline.
func (s *Server) Snapshot() config.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Update validates next, applies it to the driver, and commits the
// result. The returned snapshot is the driver's baseline after any
// per-control rollbacks. A snapshot identical to the baseline is a
// no-op, which also swallows the watcher echo after a persist.
func (s *Server) Update(next config.Snapshot, source string) (config.Snapshot, error) {
	if err := next.Validate(); err != nil {
		return s.Snapshot(), fmt.Errorf("rejecting snapshot from %s: %w", source, err)
	}

	s.mu.Lock()
	mask := config.Diff(&s.baseline, &next)
	s.mu.Unlock()
	if mask == 0 {
		s.logger.Debug("snapshot unchanged", "source", source)
		return s.Snapshot(), nil
	}

	committed := s.driver.OnConfigurationChanged(next, mask)

	s.mu.Lock()
	s.baseline = committed
	s.mu.Unlock()

	s.persist(committed)
	s.bus.Publish(events.ConfigUpdatedEvent{
		Source:    source,
		Changed:   mask.String(),
		Reopened:  mask.RequiresReopen(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	s.logger.Info("configuration updated", "source", source, "changed", mask.String())
	return committed, nil
}

// Restart re-applies the current baseline with the reopen bit set,
// forcing a device close and renegotiation. Hotplug attach and remote
// restart commands use it.
func (s *Server) Restart(reason string) {
	s.logger.Info("device session restart requested", "reason", reason)
	committed := s.driver.OnConfigurationChanged(s.Snapshot(), config.MaskDevice|config.MaskStream)

	s.mu.Lock()
	s.baseline = committed
	s.mu.Unlock()
}

// Push implements the driver's ConfigPusher. It runs under the driver
// lock inside the frame callback, so it only hands the snapshot to the
// persister goroutine and returns.
func (s *Server) Push(snap config.Snapshot) {
	select {
	case s.pushCh <- snap:
	default:
		// Replace a pending snapshot rather than queueing behind it.
		select {
		case <-s.pushCh:
		default:
		}
		select {
		case s.pushCh <- snap:
		default:
		}
	}
}

// Close stops the persister goroutine. Pending pushes are flushed.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Server) persistLoop() {
	for {
		select {
		case snap := <-s.pushCh:
			s.mu.Lock()
			s.baseline = snap
			s.mu.Unlock()
			s.persist(snap)
			s.bus.Publish(events.ConfigUpdatedEvent{
				Source:    "status",
				Changed:   config.MaskControls.String(),
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
		case <-s.done:
			select {
			case snap := <-s.pushCh:
				s.persist(snap)
			default:
			}
			return
		}
	}
}

func (s *Server) persist(snap config.Snapshot) {
	if s.path == "" {
		return
	}
	data, err := toml.Marshal(snap)
	if err != nil {
		s.logger.Error("snapshot marshal failed", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		s.logger.Warn("snapshot persist failed", "path", s.path, "error", err)
	}
}
