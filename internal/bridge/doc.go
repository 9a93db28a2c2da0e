// Package bridge runs the polling and publishing machinery between the
// Bestway cloud client and the bridge's outward surfaces.
//
// The Poller drives the cloud on two cadences: device status every poll
// cycle and the bindings list on a much slower one, both deliberately
// conservative because the vendor API is rate limited. Each successful
// cycle fans the reconciled snapshots out to every registered Publisher
// (the MQTT publisher, the WebSocket hub).
//
// The TokenManager owns the vendor session: it logs in lazily, re-uses
// the token until it approaches expiry and re-logs-in when the cloud
// reports the token invalid mid-flight.
//
// The CommandListener subscribes to the per-device MQTT command topics,
// dispatches logical commands into the client and answers each one with
// an acknowledgement message carrying a correlation ID.
package bridge
