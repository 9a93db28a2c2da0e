package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the base for all bridge topics.
//
// Scheme:
//
//	bestway/device/{device_id}/state         retained state snapshots
//	bestway/device/{device_id}/availability  retained online/offline
//	bestway/device/{device_id}/command       inbound logical commands
//	bestway/device/{device_id}/ack           command acknowledgements
//	bestway/system/status                    bridge LWT / lifecycle
const TopicPrefix = "bestway"

// Topics provides builders for the bridge's MQTT topics. Using these
// helpers keeps topic naming consistent between the publisher, the
// command listener and external consumers.
type Topics struct{}

// DeviceState returns the retained state topic for a device.
//
// Example: bestway/device/abc123/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, deviceID)
}

// DeviceAvailability returns the retained availability topic for a device.
//
// Example: bestway/device/abc123/availability
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/availability", TopicPrefix, deviceID)
}

// DeviceCommand returns the command topic for a device.
//
// Example: bestway/device/abc123/command
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/command", TopicPrefix, deviceID)
}

// CommandAck returns the acknowledgement topic for a device.
//
// Example: bestway/device/abc123/ack
func (Topics) CommandAck(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/ack", TopicPrefix, deviceID)
}

// SystemStatus returns the bridge lifecycle status topic. The broker
// publishes the LWT here when the bridge dies without a clean shutdown.
//
// Example: bestway/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllDeviceCommands returns a pattern matching command topics for every
// device.
//
// Pattern: bestway/device/+/command
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/device/+/command", TopicPrefix)
}

// AllDeviceStates returns a pattern matching state topics for every
// device.
//
// Pattern: bestway/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// DeviceIDFromCommandTopic extracts the device ID from a command topic.
// It returns false when the topic does not match the command scheme.
func (Topics) DeviceIDFromCommandTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/device/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/command")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
