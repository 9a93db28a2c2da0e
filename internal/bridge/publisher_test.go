package bridge

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/calmwater/bestway-bridge/internal/bestway"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/mqtt"
)

// fakeBroker records publishes and subscriptions in memory.
type fakeBroker struct {
	mu       sync.Mutex
	messages map[string][]byte
	handlers map[string]mqtt.MessageHandler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		messages: make(map[string][]byte),
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

func (b *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	b.messages[topic] = payload
	b.mu.Unlock()
	return nil
}

func (b *fakeBroker) PublishRetained(topic string, payload []byte) error {
	return b.Publish(topic, payload, 1, true)
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	b.handlers[topic] = handler
	b.mu.Unlock()
	return nil
}

func (b *fakeBroker) message(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg, ok := b.messages[topic]
	return msg, ok
}

func TestMQTTPublisherState(t *testing.T) {
	broker := newFakeBroker()
	pub := NewMQTTPublisher(broker, nil)

	device := bestway.Device{ID: "spa1", Alias: "Garden", ProductName: "Airjet_V01"}
	status := bestway.DeviceStatus{
		Timestamp: 1750000000,
		Attrs: bestway.Attrs{
			"power": float64(1),
			"wave":  float64(51),
			"E04":   float64(1),
		},
	}

	if err := pub.PublishState(device, status); err != nil {
		t.Fatalf("PublishState() error: %v", err)
	}

	raw, ok := broker.message("bestway/device/spa1/state")
	if !ok {
		t.Fatal("no message on the state topic")
	}

	var payload StatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("state payload is not JSON: %v", err)
	}

	if payload.DeviceID != "spa1" || payload.Alias != "Garden" {
		t.Errorf("unexpected identity fields: %+v", payload)
	}
	if payload.DeviceType != string(bestway.DeviceTypeAirjetV01) {
		t.Errorf("device_type = %q", payload.DeviceType)
	}
	if payload.Timestamp != 1750000000 {
		t.Errorf("timestamp = %d", payload.Timestamp)
	}
	if payload.BubblesLevel != string(bestway.BubblesMedium) {
		t.Errorf("bubbles_level = %q, want medium", payload.BubblesLevel)
	}
	if !payload.Errors["E04"] {
		t.Errorf("errors = %v, want E04 raised", payload.Errors)
	}
	if v, _ := payload.Attrs.Int("power"); v != 1 {
		t.Errorf("attrs.power = %d", v)
	}
}

func TestMQTTPublisherAvailability(t *testing.T) {
	broker := newFakeBroker()
	pub := NewMQTTPublisher(broker, nil)
	device := bestway.Device{ID: "spa1"}

	pub.PublishAvailability(device, true)
	if msg, _ := broker.message("bestway/device/spa1/availability"); string(msg) != "online" {
		t.Errorf("availability = %q, want online", msg)
	}

	pub.PublishAvailability(device, false)
	if msg, _ := broker.message("bestway/device/spa1/availability"); string(msg) != "offline" {
		t.Errorf("availability = %q, want offline", msg)
	}
}
