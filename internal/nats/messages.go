package nats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openuvc/uvcnode/internal/camerainfo"
)

// Subject prefixes for NATS topics.
const (
	SubjectCameraPrefix  = "uvcnode.camera"
	SubjectControlPrefix = "uvcnode.control"
	SubjectEvents        = "uvcnode.driver.events"
)

// sanitizeToken makes a frame identifier safe for use inside a NATS
// subject. Dots, wildcards, and whitespace become underscores.
func sanitizeToken(id string) string {
	if id == "" {
		return "camera"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		default:
			return r
		}
	}, id)
}

// SubjectImage returns the NATS subject carrying image frames.
func SubjectImage(frameID string) string {
	return fmt.Sprintf("%s.%s.image", SubjectCameraPrefix, sanitizeToken(frameID))
}

// SubjectCameraInfo returns the NATS subject carrying calibration data.
func SubjectCameraInfo(frameID string) string {
	return fmt.Sprintf("%s.%s.info", SubjectCameraPrefix, sanitizeToken(frameID))
}

// SubjectControlRestart returns the NATS subject for restart commands.
func SubjectControlRestart(frameID string) string {
	return fmt.Sprintf("%s.%s.restart", SubjectControlPrefix, sanitizeToken(frameID))
}

// ImageMessage is one converted camera frame sent over NATS. Data is
// base64-encoded in the JSON wire form.
type ImageMessage struct {
	FrameID  string `json:"frame_id"`
	Seq      uint32 `json:"seq"`
	Stamp    string `json:"stamp"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Step     int    `json:"step"`
	Encoding string `json:"encoding"`
	TraceID  string `json:"trace_id,omitempty"`
	Data     []byte `json:"data"`
}

// Marshal serializes the message to JSON.
func (m ImageMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// InfoMessage is the calibration payload published alongside each frame.
type InfoMessage struct {
	FrameID    string                `json:"frame_id"`
	Stamp      string                `json:"stamp"`
	TraceID    string                `json:"trace_id,omitempty"`
	CameraInfo camerainfo.CameraInfo `json:"camera_info"`
}

// Marshal serializes the message to JSON.
func (m InfoMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessage wraps a driver event for external subscribers.
type EventMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Marshal serializes the message to JSON.
func (m EventMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlMessage is a command sent to a running camera node.
type ControlMessage struct {
	Action    string `json:"action"` // restart
	FrameID   string `json:"frame_id"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalImage deserializes an ImageMessage from JSON.
func UnmarshalImage(data []byte) (ImageMessage, error) {
	var m ImageMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalInfo deserializes an InfoMessage from JSON.
func UnmarshalInfo(data []byte) (InfoMessage, error) {
	var m InfoMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}
