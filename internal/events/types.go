package events

// Event type constants for kelindar/event.
const (
	TypeStateChanged uint32 = iota + 1
	TypeDeviceOpened
	TypeDeviceClosed
	TypeDeviceHotplug
	TypeFramePublished
	TypeControlWrite
	TypeStatusIngested
	TypeConfigUpdated
	TypeDriverError
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StateChangedEvent is published on every driver state transition.
type StateChangedEvent struct {
	From      string `json:"from" example:"stopped" doc:"State before the transition"`
	To        string `json:"to" example:"running" doc:"State after the transition"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for StateChangedEvent.
func (e StateChangedEvent) Type() uint32 { return TypeStateChanged }

// DeviceOpenedEvent is published when a camera session comes up.
type DeviceOpenedEvent struct {
	Vendor    string `json:"vendor" example:"0x046d" doc:"USB vendor identifier"`
	Product   string `json:"product" example:"0x0825" doc:"USB product identifier"`
	Serial    string `json:"serial,omitempty" example:"8A31F2C0" doc:"Device serial number"`
	Bus       uint8  `json:"bus" example:"1" doc:"USB bus number"`
	Address   uint8  `json:"address" example:"4" doc:"USB device address"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceOpenedEvent.
func (e DeviceOpenedEvent) Type() uint32 { return TypeDeviceOpened }

// DeviceClosedEvent is published when a camera session is torn down.
type DeviceClosedEvent struct {
	Reason    string `json:"reason" example:"reconfigure" doc:"Why the session ended"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceClosedEvent.
func (e DeviceClosedEvent) Type() uint32 { return TypeDeviceClosed }

// DeviceHotplugEvent mirrors a kernel uevent for USB video hardware.
type DeviceHotplugEvent struct {
	Action    string `json:"action" example:"add" doc:"Kernel action: add, remove, change"`
	Subsystem string `json:"subsystem" example:"usb" doc:"Kernel subsystem"`
	DevPath   string `json:"devpath,omitempty" doc:"Kernel device path"`
	DevName   string `json:"devname,omitempty" example:"bus/usb/001/004" doc:"Device node name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceHotplugEvent.
func (e DeviceHotplugEvent) Type() uint32 { return TypeDeviceHotplug }

// FramePublishedEvent carries frame metadata, never pixel data. Image
// payloads travel over the message broker; this event exists so UI and
// monitoring subscribers can follow the pipeline cheaply.
type FramePublishedEvent struct {
	FrameID   string `json:"frame_id" example:"camera" doc:"Coordinate frame identifier"`
	Seq       uint32 `json:"seq" example:"1042" doc:"Device frame sequence number"`
	Width     int    `json:"width" example:"1280" doc:"Image width in pixels"`
	Height    int    `json:"height" example:"720" doc:"Image height in pixels"`
	Encoding  string `json:"encoding" example:"bgr8" doc:"Pixel encoding of the published image"`
	TraceID   string `json:"trace_id,omitempty" doc:"Correlation identifier for the frame"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00.123Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for FramePublishedEvent.
func (e FramePublishedEvent) Type() uint32 { return TypeFramePublished }

// ControlWriteEvent records one control transfer pushed to the camera.
type ControlWriteEvent struct {
	Control   string  `json:"control" example:"exposure_absolute" doc:"Control name"`
	Values    []int64 `json:"values" example:"[200]" doc:"Raw values sent to the device"`
	Rejected  bool    `json:"rejected" example:"false" doc:"Whether the device refused the write"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ControlWriteEvent.
func (e ControlWriteEvent) Type() uint32 { return TypeControlWrite }

// StatusIngestedEvent is published when a hardware status interrupt
// updates the configuration.
type StatusIngestedEvent struct {
	Control   string  `json:"control" example:"exposure_absolute" doc:"Control reported by the device"`
	Value     float64 `json:"value" example:"0.02" doc:"Decoded control value"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusIngestedEvent.
func (e StatusIngestedEvent) Type() uint32 { return TypeStatusIngested }

// ConfigUpdatedEvent is published when a new configuration snapshot is
// accepted, regardless of where it originated.
type ConfigUpdatedEvent struct {
	Source    string `json:"source" example:"api" doc:"Origin of the update: api, file, status"`
	Changed   string `json:"changed" example:"stream|controls" doc:"Changed field groups"`
	Reopened  bool   `json:"reopened" example:"true" doc:"Whether the device session was restarted"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConfigUpdatedEvent.
func (e ConfigUpdatedEvent) Type() uint32 { return TypeConfigUpdated }

// DriverErrorEvent is published for recoverable driver failures.
type DriverErrorEvent struct {
	Code      string `json:"code" example:"open_failed" doc:"Stable error code"`
	Message   string `json:"message" example:"unable to open camera" doc:"Human-readable description"`
	Detail    string `json:"detail,omitempty" doc:"Underlying error text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DriverErrorEvent.
func (e DriverErrorEvent) Type() uint32 { return TypeDriverError }

// LogEntryEvent carries one log line to streaming subscribers.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"driver" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
