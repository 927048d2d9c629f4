package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/openuvc/uvcnode/internal/events"
)

// Bridge forwards driver events from the in-process bus onto a NATS
// subject so external systems can follow the camera without speaking
// HTTP. Frame events are intentionally excluded: pixel data already
// travels on the image subject and metadata-only followers can use SSE.
type Bridge struct {
	url      string
	eventBus *events.Bus
	conn     *nats.Conn
	unsubs   []func()
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewBridge creates a new event-bus-to-NATS bridge.
func NewBridge(url string, eventBus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:      url,
		eventBus: eventBus,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start connects to NATS and begins forwarding bus events.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name("uvcnode-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}

	b.conn = conn
	b.logger.Info("NATS bridge connected", "url", b.url)

	b.unsubs = append(b.unsubs,
		b.eventBus.Subscribe(func(e events.StateChangedEvent) { b.forward("state_changed", e) }),
		b.eventBus.Subscribe(func(e events.DeviceOpenedEvent) { b.forward("device_opened", e) }),
		b.eventBus.Subscribe(func(e events.DeviceClosedEvent) { b.forward("device_closed", e) }),
		b.eventBus.Subscribe(func(e events.DeviceHotplugEvent) { b.forward("device_hotplug", e) }),
		b.eventBus.Subscribe(func(e events.ControlWriteEvent) { b.forward("control_write", e) }),
		b.eventBus.Subscribe(func(e events.StatusIngestedEvent) { b.forward("status_ingested", e) }),
		b.eventBus.Subscribe(func(e events.ConfigUpdatedEvent) { b.forward("config_updated", e) }),
		b.eventBus.Subscribe(func(e events.DriverErrorEvent) { b.forward("driver_error", e) }),
	)

	b.logger.Info("NATS bridge forwarding driver events", "subject", SubjectEvents)
	return nil
}

// forward wraps a bus event and publishes it on the events subject.
func (b *Bridge) forward(eventType string, payload any) {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		return
	}

	msg := EventMessage{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}

	data, err := msg.Marshal()
	if err != nil {
		b.logger.Warn("Failed to marshal event", "type", eventType, "error", err)
		return
	}

	if err := conn.Publish(SubjectEvents, data); err != nil {
		b.logger.Warn("Failed to forward event", "type", eventType, "error", err)
		return
	}
	b.logger.Debug("Forwarded event", "type", eventType)
}

// cleanup unsubscribes from the bus and closes the connection.
func (b *Bridge) cleanup() {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Stop disconnects the bridge from the bus and the broker.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleanup()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
