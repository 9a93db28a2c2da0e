package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/calmwater/bestway-bridge/internal/bestway"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/mqtt"
)

// MQTTPublisher publishes device state and availability as retained
// MQTT messages, so home-automation consumers receive current values
// the moment they subscribe.
type MQTTPublisher struct {
	broker Broker
	topics mqtt.Topics
	logger Logger
}

// NewMQTTPublisher creates a publisher on the given broker connection.
func NewMQTTPublisher(broker Broker, logger Logger) *MQTTPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTPublisher{broker: broker, logger: logger}
}

// StatePayload is the JSON document published on the per-device state
// topic. Attrs carries the raw vendor attribute bag; the decoded fields
// exist so consumers do not need the per-model encodings.
type StatePayload struct {
	DeviceID    string          `json:"device_id"`
	Alias       string          `json:"alias"`
	ProductName string          `json:"product_name"`
	DeviceType  string          `json:"device_type"`
	Timestamp   int64           `json:"timestamp"`
	Attrs       bestway.Attrs   `json:"attrs"`
	Errors      map[string]bool `json:"errors,omitempty"`

	// BubblesLevel is set for three-level models only.
	BubblesLevel string `json:"bubbles_level,omitempty"`
}

// NewStatePayload builds the published document for one device
// snapshot. Shared by the MQTT publisher and the WebSocket hub so both
// surfaces emit identical state documents.
func NewStatePayload(device bestway.Device, status bestway.DeviceStatus) StatePayload {
	payload := StatePayload{
		DeviceID:    device.ID,
		Alias:       device.Alias,
		ProductName: device.ProductName,
		DeviceType:  string(device.Type()),
		Timestamp:   status.Timestamp,
		Attrs:       status.Attrs,
		Errors:      status.ErrorFlags(),
	}
	if level, ok := bestway.BubblesLevelFromStatus(device.Type(), status); ok {
		payload.BubblesLevel = string(level)
	}
	return payload
}

// PublishState publishes the state snapshot for one device.
func (p *MQTTPublisher) PublishState(device bestway.Device, status bestway.DeviceStatus) error {
	payload := NewStatePayload(device, status)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding state payload: %w", err)
	}

	return p.broker.PublishRetained(p.topics.DeviceState(device.ID), data)
}

// PublishAvailability publishes "online" or "offline" for one device.
func (p *MQTTPublisher) PublishAvailability(device bestway.Device, online bool) error {
	payload := "offline"
	if online {
		payload = "online"
	}
	return p.broker.PublishRetained(p.topics.DeviceAvailability(device.ID), []byte(payload))
}
