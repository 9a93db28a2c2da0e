package bridge

import (
	"context"

	"github.com/calmwater/bestway-bridge/internal/bestway"
	"github.com/calmwater/bestway-bridge/internal/infrastructure/mqtt"
)

// SpaClient is the slice of the cloud client the bridge machinery
// depends on. Satisfied by *bestway.Client; tests substitute a fake.
type SpaClient interface {
	SetUserToken(token string)
	RefreshBindings(ctx context.Context) error
	FetchData(ctx context.Context) (map[string]bestway.DeviceStatus, error)
	Devices() map[string]bestway.Device
	Device(id string) (bestway.Device, bool)
	Status(id string) (bestway.DeviceStatus, bool)
	Send(ctx context.Context, deviceID string, cmd bestway.Command, value any) error
}

// Publisher receives device snapshots from the poller after each
// successful cycle. Implementations must tolerate being called with the
// same state repeatedly; the poller does not dedupe.
type Publisher interface {
	PublishState(device bestway.Device, status bestway.DeviceStatus) error
	PublishAvailability(device bestway.Device, online bool) error
}

// Broker is the slice of the MQTT client used by the publisher and the
// command listener.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the minimal logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
