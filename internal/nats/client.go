package nats

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned by publish calls while the client has no
// live connection to the broker.
var ErrNotConnected = errors.New("nats: not connected")

// Client publishes camera frames and calibration data to NATS and
// listens for control commands. It degrades gracefully: publishing
// without a connection returns ErrNotConnected instead of blocking.
type Client struct {
	url       string
	frameID   string
	conn      *nats.Conn
	sub       *nats.Subscription
	logger    *slog.Logger
	mu        sync.RWMutex
	onRestart func()
	connected bool
}

// NewClient creates a NATS client for the camera identified by frameID.
func NewClient(url, frameID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:     url,
		frameID: frameID,
		logger:  logger.With("component", "nats-client", "frame_id", frameID),
	}
}

// Connect establishes a connection to the NATS server. A failed connect
// leaves the client in offline mode; publishes return ErrNotConnected
// until a reconnect succeeds.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name("uvcnode-" + sanitizeToken(c.frameID)),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			c.logger.Info("NATS reconnected")
			// Resubscribe to control commands after reconnect
			c.subscribeControlLocked()
		}),
		nats.ConnectHandler(func(_ *nats.Conn) {
			c.logger.Debug("NATS connected")
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)

	c.subscribeControlLocked()

	return nil
}

// subscribeControlLocked subscribes to control commands (must hold lock).
func (c *Client) subscribeControlLocked() {
	if c.conn == nil || c.onRestart == nil {
		return
	}

	subject := SubjectControlRestart(c.frameID)
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		ctrl, err := UnmarshalControl(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal control message", "error", err)
			return
		}

		c.logger.Info("Received control command", "action", ctrl.Action, "reason", ctrl.Reason)

		if ctrl.Action == "restart" && c.onRestart != nil {
			c.onRestart()
		}
	})
	if err != nil {
		c.logger.Warn("Failed to subscribe to control commands", "error", err)
		return
	}

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	c.sub = sub
}

// OnRestart sets the callback invoked when a restart command arrives.
func (c *Client) OnRestart(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRestart = fn

	if c.conn != nil && c.connected {
		c.subscribeControlLocked()
	}
}

// PublishImage publishes one converted frame.
func (c *Client) PublishImage(m ImageMessage) error {
	return c.publish(SubjectImage(c.frameID), m)
}

// PublishInfo publishes the calibration for one frame.
func (c *Client) PublishInfo(m InfoMessage) error {
	return c.publish(SubjectCameraInfo(c.frameID), m)
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (c *Client) publish(subject string, m marshaler) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.logger.Debug("NATS client closed")
}

// ControlPublisher sends control commands to running camera nodes.
type ControlPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewControlPublisher creates a publisher for control commands.
func NewControlPublisher(url string, logger *slog.Logger) (*ControlPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("uvcnode-control"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, err
	}

	return &ControlPublisher{
		conn:   conn,
		logger: logger.With("component", "nats-control"),
	}, nil
}

// Restart asks the camera node handling frameID to restart its session.
func (p *ControlPublisher) Restart(frameID, reason string) error {
	msg := ControlMessage{
		Action:    "restart",
		FrameID:   frameID,
		Timestamp: time.Now().Format(time.RFC3339),
		Reason:    reason,
	}

	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectControlRestart(frameID), data); err != nil {
		return err
	}

	p.logger.Info("Sent restart command", "frame_id", frameID, "reason", reason)
	return nil
}

// Close closes the control publisher connection.
func (p *ControlPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
