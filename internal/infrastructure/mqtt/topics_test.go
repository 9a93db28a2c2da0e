package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("abc123"), "bestway/device/abc123/state"},
		{"device availability", topics.DeviceAvailability("abc123"), "bestway/device/abc123/availability"},
		{"device command", topics.DeviceCommand("abc123"), "bestway/device/abc123/command"},
		{"command ack", topics.CommandAck("abc123"), "bestway/device/abc123/ack"},
		{"system status", topics.SystemStatus(), "bestway/system/status"},
		{"all commands pattern", topics.AllDeviceCommands(), "bestway/device/+/command"},
		{"all states pattern", topics.AllDeviceStates(), "bestway/device/+/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestDeviceIDFromCommandTopic(t *testing.T) {
	tests := []struct {
		topic  string
		wantID string
		wantOK bool
	}{
		{"bestway/device/abc123/command", "abc123", true},
		{"bestway/device/abc123/state", "", false},
		{"bestway/device//command", "", false},
		{"bestway/system/status", "", false},
		{"other/device/abc123/command", "", false},
		{"bestway/device/a/b/command", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, ok := Topics{}.DeviceIDFromCommandTopic(tt.topic)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("DeviceIDFromCommandTopic(%q) = (%q, %v), want (%q, %v)",
					tt.topic, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}
