// Package mqtt provides MQTT client connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topic scheme
//
// The bridge publishes retained per-device state and availability and
// listens for logical commands:
//
//	bestway/device/{device_id}/state
//	bestway/device/{device_id}/availability
//	bestway/device/{device_id}/command
//	bestway/device/{device_id}/ack
//	bestway/system/status
//
// State and availability are retained so home-automation consumers get
// the current values immediately on subscribe. Commands and acks are
// not retained.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        // dispatch the command
//	        return nil
//	    })
package mqtt
