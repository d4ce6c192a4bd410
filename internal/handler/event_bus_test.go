package handler

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"print-agent/internal/session"
)

func TestSessionEventBridgePublishesStateAndLoss(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	states := bus.Subscribe(EventStateChanged)
	lost := bus.Subscribe(EventDeviceLost)
	go bus.Start()

	bridge := NewSessionEventBridge(bus, zap.NewNop())
	bridge.OnStateChanged(session.State{IsConnected: true})
	bridge.OnDeviceLost("usb printer unplugged")

	select {
	case ev := <-states:
		if ev.Data["is_connected"] != true {
			t.Errorf("state event data = %v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("state change never reached subscribers")
	}

	select {
	case ev := <-lost:
		if ev.Data["reason"] != "usb printer unplugged" {
			t.Errorf("device lost reason = %v", ev.Data["reason"])
		}
		if ev.Timestamp.IsZero() {
			t.Error("published event missing timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("device loss never reached subscribers")
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	bus := NewEventBus(zap.NewNop())
	// Not started: the buffer fills and further publishes must not block.
	for i := 0; i < 1100; i++ {
		bus.Publish(Event{Type: EventStateChanged})
	}
}
