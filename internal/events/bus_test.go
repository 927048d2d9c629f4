package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FramePublishedEvent, 1)

	unsub := bus.Subscribe(func(e FramePublishedEvent) {
		received <- e
	})
	defer unsub()

	event := FramePublishedEvent{
		FrameID:  "camera",
		Seq:      42,
		Width:    1280,
		Height:   720,
		Encoding: "bgr8",
	}
	bus.Publish(event)

	got := <-received
	if got.Seq != event.Seq || got.Encoding != event.Encoding {
		t.Errorf("received %+v, want %+v", got, event)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan DeviceOpenedEvent, 1)
	received2 := make(chan DeviceOpenedEvent, 1)

	unsub1 := bus.Subscribe(func(e DeviceOpenedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e DeviceOpenedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(DeviceOpenedEvent{Vendor: "0x046d", Product: "0x0825"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DriverErrorEvent, 1)

	unsub := bus.Subscribe(func(e DriverErrorEvent) {
		received <- e
	})

	bus.Publish(DriverErrorEvent{Code: "open_failed"})
	<-received

	unsub()

	bus.Publish(DriverErrorEvent{Code: "negotiation"})
	select {
	case <-received:
		t.Fatal("received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	frameReceived := make(chan bool, 1)
	controlReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ FramePublishedEvent) {
		frameReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ ControlWriteEvent) {
		controlReceived <- true
	})
	defer unsub2()

	bus.Publish(FramePublishedEvent{Seq: 1})
	<-frameReceived

	select {
	case <-controlReceived:
		t.Fatal("control subscriber received a frame event")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(ControlWriteEvent{Control: "gain", Values: []int64{4}})
	<-controlReceived

	select {
	case <-frameReceived:
		t.Fatal("frame subscriber received a control event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ DeviceHotplugEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(DeviceHotplugEvent{
					Action:    "add",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"StateChanged", StateChangedEvent{From: "stopped", To: "running"}},
		{"DeviceOpened", DeviceOpenedEvent{Vendor: "0x046d"}},
		{"DeviceClosed", DeviceClosedEvent{Reason: "shutdown"}},
		{"DeviceHotplug", DeviceHotplugEvent{Action: "add"}},
		{"FramePublished", FramePublishedEvent{Seq: 7}},
		{"ControlWrite", ControlWriteEvent{Control: "exposure_absolute"}},
		{"StatusIngested", StatusIngestedEvent{Control: "exposure_absolute", Value: 0.02}},
		{"ConfigUpdated", ConfigUpdatedEvent{Source: "api"}},
		{"DriverError", DriverErrorEvent{Code: "open_failed"}},
		{"LogEntry", LogEntryEvent{Module: "driver", Message: "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case StateChangedEvent:
				unsub = bus.Subscribe(func(e StateChangedEvent) { received <- e })
			case DeviceOpenedEvent:
				unsub = bus.Subscribe(func(e DeviceOpenedEvent) { received <- e })
			case DeviceClosedEvent:
				unsub = bus.Subscribe(func(e DeviceClosedEvent) { received <- e })
			case DeviceHotplugEvent:
				unsub = bus.Subscribe(func(e DeviceHotplugEvent) { received <- e })
			case FramePublishedEvent:
				unsub = bus.Subscribe(func(e FramePublishedEvent) { received <- e })
			case ControlWriteEvent:
				unsub = bus.Subscribe(func(e ControlWriteEvent) { received <- e })
			case StatusIngestedEvent:
				unsub = bus.Subscribe(func(e StatusIngestedEvent) { received <- e })
			case ConfigUpdatedEvent:
				unsub = bus.Subscribe(func(e ConfigUpdatedEvent) { received <- e })
			case DriverErrorEvent:
				unsub = bus.Subscribe(func(e DriverErrorEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
	}{
		{
			"FramePublishedEvent",
			FramePublishedEvent{
				FrameID:   "camera",
				Seq:       1042,
				Width:     1280,
				Height:    720,
				Encoding:  "bgr8",
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
		{
			"ControlWriteEvent",
			ControlWriteEvent{
				Control:   "pan_tilt_absolute",
				Values:    []int64{36000, -36000},
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
		{
			"ConfigUpdatedEvent",
			ConfigUpdatedEvent{
				Source:    "file",
				Changed:   "controls",
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if len(result) == 0 {
				t.Fatal("Unmarshaled to empty object")
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[StatusIngestedEvent](bus, ch)
	defer unsub()

	event := StatusIngestedEvent{
		Control: "white_balance_temperature",
		Value:   4600,
	}
	bus.Publish(event)

	received := <-ch
	statusEvent, ok := received.(StatusIngestedEvent)
	if !ok {
		t.Fatalf("Expected StatusIngestedEvent, got %T", received)
	}
	if statusEvent.Control != event.Control {
		t.Errorf("Expected control %s, got %s", event.Control, statusEvent.Control)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[DeviceClosedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(DeviceClosedEvent{Reason: "shutdown"})
		done <- true
	}()

	<-done // Should complete without blocking
}
