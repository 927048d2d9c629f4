package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/openuvc/uvcnode/internal/events"
)

// registerSSERoutes registers the driver event stream.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Driver Event Stream",
		Description: "Real-time stream of driver state changes, device sessions, control writes, " +
			"hotplug events, and published frame metadata",
		Tags:     []string{"events"},
		Security: withAuth(),
		Errors:   []int{401},
	}, map[string]any{
		"state-changed":   events.StateChangedEvent{},
		"device-opened":   events.DeviceOpenedEvent{},
		"device-closed":   events.DeviceClosedEvent{},
		"device-hotplug":  events.DeviceHotplugEvent{},
		"frame-published": events.FramePublishedEvent{},
		"control-write":   events.ControlWriteEvent{},
		"status-ingested": events.StatusIngestedEvent{},
		"config-updated":  events.ConfigUpdatedEvent{},
		"driver-error":    events.DriverErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.StateChangedEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.DeviceOpenedEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.DeviceClosedEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.DeviceHotplugEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.FramePublishedEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.ControlWriteEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.StatusIngestedEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.ConfigUpdatedEvent](s.opts.EventBus, eventCh),
			events.SubscribeToChannel[events.DriverErrorEvent](s.opts.EventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Tell the client where the driver stands before streaming.
		state := s.opts.Driver.State().String()
		if err := send.Data(events.StateChangedEvent{
			From:      state,
			To:        state,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
