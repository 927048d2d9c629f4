package devices

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/openuvc/uvcnode/internal/events"
	"github.com/openuvc/uvcnode/internal/logging"
)

// Kernel uevent actions the watcher cares about.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// UEvent is one parsed kernel device event.
type UEvent struct {
	Action    string
	KObj      string
	Subsystem string
	DevType   string
	DevName   string
	DevPath   string
}

// ParseUEvent parses a kernel uevent message of the form
// "ACTION@KOBJ\0KEY=VALUE\0KEY=VALUE\0...". Returns nil for anything
// that does not match.
func ParseUEvent(data []byte) *UEvent {
	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return nil
	}
	header := string(parts[0])
	at := strings.Index(header, "@")
	if at < 1 {
		return nil
	}
	ev := &UEvent{Action: header[:at], KObj: header[at+1:]}
	for _, part := range parts[1:] {
		kv := string(part)
		eq := strings.Index(kv, "=")
		if eq < 1 {
			continue
		}
		switch kv[:eq] {
		case "SUBSYSTEM":
			ev.Subsystem = kv[eq+1:]
		case "DEVTYPE":
			ev.DevType = kv[eq+1:]
		case "DEVNAME":
			ev.DevName = kv[eq+1:]
		case "DEVPATH":
			ev.DevPath = kv[eq+1:]
		}
	}
	return ev
}

// Hotplug follows kernel USB uevents, mirrors them onto the event bus,
// and invokes a callback when a USB device attaches so a camera plugged
// in after startup comes up without a manual restart.
type Hotplug struct {
	bus      *events.Bus
	onAttach func()
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	// attach events arrive in bursts while the kernel binds interfaces;
	// the callback fires at most once per debounce window.
	debounce   time.Duration
	lastAttach time.Time
}

// StartHotplug begins monitoring. onAttach may be nil. Platforms
// without netlink support return the monitor creation error.
func StartHotplug(bus *events.Bus, onAttach func()) (*Hotplug, error) {
	mon, err := newMonitor()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hotplug{
		bus:      bus,
		onAttach: onAttach,
		logger:   logging.GetLogger("devices"),
		cancel:   cancel,
		done:     make(chan struct{}),
		debounce: 2 * time.Second,
	}
	ch := make(chan UEvent, 16)
	go func() {
		defer close(h.done)
		if err := mon.run(ctx, ch); err != nil && ctx.Err() == nil {
			h.logger.Warn("hotplug monitor stopped", "error", err)
		}
	}()
	go h.consume(ch)
	h.logger.Info("hotplug monitoring started")
	return h, nil
}

// Stop ends monitoring and waits for the monitor goroutine to exit.
func (h *Hotplug) Stop() {
	h.cancel()
	<-h.done
}

func (h *Hotplug) consume(ch <-chan UEvent) {
	for ev := range ch {
		// Interface binds repeat the device event; only whole devices
		// are interesting.
		if ev.DevType != "usb_device" {
			continue
		}
		h.logger.Debug("usb uevent", "action", ev.Action, "devname", ev.DevName)
		h.bus.Publish(events.DeviceHotplugEvent{
			Action:    ev.Action,
			Subsystem: ev.Subsystem,
			DevPath:   ev.DevPath,
			DevName:   ev.DevName,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		if ev.Action == ActionAdd && h.onAttach != nil {
			now := time.Now()
			if now.Sub(h.lastAttach) >= h.debounce {
				h.lastAttach = now
				h.onAttach()
			}
		}
	}
}
