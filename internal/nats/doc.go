// Package nats provides embedded NATS messaging for the camera pipeline.
//
// # Architecture
//
//   - Server: Embedded NATS server running inside the uvcnode process
//   - Client: Publishes image frames and calibration, receives control
//     commands
//   - Bridge: Forwards driver events from the in-process bus to NATS
//   - ControlPublisher: Sends control commands to running camera nodes
//
// # Subject Hierarchy
//
//	uvcnode.camera.{frame_id}.image    # Converted frames (node → consumers)
//	uvcnode.camera.{frame_id}.info     # Calibration per frame (node → consumers)
//	uvcnode.driver.events              # Driver lifecycle events (node → consumers)
//	uvcnode.control.{frame_id}.restart # Restart command (controller → node)
//
// The package uses fire-and-forget messaging (core NATS, no JetStream).
// Publishing degrades gracefully when the broker is unavailable.
//
// # Debugging with nats CLI
//
// Monitor every frame published by the default camera:
//
//	nats sub "uvcnode.camera.camera.image"
//
// Follow driver events:
//
//	nats sub "uvcnode.driver.events" | jq .
//
// Ask a node to restart its device session:
//
//	nats pub "uvcnode.control.camera.restart" \
//	  '{"action":"restart","frame_id":"camera","reason":"manual_debug"}'
//
// Check server info and connected clients:
//
//	nats server info
//	nats server list
//
// # Message Formats
//
// ImageMessage (uvcnode.camera.{frame_id}.image), data base64-encoded:
//
//	{
//	  "frame_id": "camera",
//	  "seq": 1042,
//	  "stamp": "2024-01-01T12:00:00.123456789Z",
//	  "width": 1280,
//	  "height": 720,
//	  "step": 3840,
//	  "encoding": "bgr8",
//	  "trace_id": "67c0ee3c-06bb-44ec-a7f1-0a2056e8154a",
//	  "data": "..."
//	}
//
// InfoMessage (uvcnode.camera.{frame_id}.info):
//
//	{
//	  "frame_id": "camera",
//	  "stamp": "2024-01-01T12:00:00.123456789Z",
//	  "camera_info": {"image_width": 1280, "image_height": 720, ...}
//	}
//
// EventMessage (uvcnode.driver.events):
//
//	{
//	  "type": "state_changed",
//	  "timestamp": "2024-01-01T12:00:00.123Z",
//	  "payload": {"from": "stopped", "to": "running", ...}
//	}
//
// ControlMessage (uvcnode.control.{frame_id}.restart):
//
//	{
//	  "action": "restart",
//	  "frame_id": "camera",
//	  "timestamp": "2024-01-01T12:00:00Z",
//	  "reason": "api_restart"
//	}
package nats
