package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calmwater/bestway-bridge/internal/bestway"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/mqtt"
)

// defaultCommandTimeout bounds a single command dispatch including the
// vendor control POST.
const defaultCommandTimeout = 15 * time.Second

// CommandMessage is the JSON document accepted on the per-device
// command topic.
//
//	{"command": "set_heat", "value": true}
//	{"command": "set_target_temperature", "value": 38}
//	{"command": "set_bubbles_level", "value": "medium"}
type CommandMessage struct {
	Command string `json:"command"`
	Value   any    `json:"value"`
}

// CommandAck is published on the per-device ack topic after every
// command, successful or not. CorrelationID is generated per command so
// consumers can match acks when issuing commands concurrently.
type CommandAck struct {
	CorrelationID string `json:"correlation_id"`
	DeviceID      string `json:"device_id"`
	Command       string `json:"command"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// CommandListener subscribes to the device command topics and
// dispatches logical commands into the cloud client.
type CommandListener struct {
	client  SpaClient
	broker  Broker
	topics  mqtt.Topics
	timeout time.Duration
	logger  Logger
	now     func() time.Time
}

// NewCommandListener creates a listener; Start must be called once the
// broker is connected.
func NewCommandListener(client SpaClient, broker Broker, logger Logger) *CommandListener {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CommandListener{
		client:  client,
		broker:  broker,
		timeout: defaultCommandTimeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Start subscribes to the wildcard command topic. The subscription is
// restored automatically by the MQTT layer after reconnects.
func (l *CommandListener) Start() error {
	return l.broker.Subscribe(l.topics.AllDeviceCommands(), 1, l.handle)
}

// handle processes one command message end to end: parse, dispatch, ack.
func (l *CommandListener) handle(topic string, payload []byte) error {
	deviceID, ok := l.topics.DeviceIDFromCommandTopic(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	ack := CommandAck{
		CorrelationID: uuid.NewString(),
		DeviceID:      deviceID,
		Timestamp:     l.now().UTC().Format(time.RFC3339),
	}

	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		ack.Error = fmt.Sprintf("invalid command payload: %v", err)
		l.publishAck(ack)
		return nil
	}
	ack.Command = msg.Command

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	if err := l.client.Send(ctx, deviceID, bestway.Command(msg.Command), msg.Value); err != nil {
		l.logger.Warn("command dispatch failed",
			"command", msg.Command, "error", err)
		ack.Error = err.Error()
		l.publishAck(ack)
		return nil
	}

	ack.Success = true
	l.publishAck(ack)
	return nil
}

// publishAck publishes the acknowledgement, not retained. Failures are
// logged only; the command itself has already been dispatched.
func (l *CommandListener) publishAck(ack CommandAck) {
	data, err := json.Marshal(ack)
	if err != nil {
		l.logger.Error("encoding command ack failed", "error", err)
		return
	}
	if err := l.broker.Publish(l.topics.CommandAck(ack.DeviceID), data, 1, false); err != nil {
		l.logger.Warn("publishing command ack failed", "error", err)
	}
}
