package bestway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Client.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Client is the Bestway cloud API client.
//
// It maintains two pieces of state: the device registry (static metadata
// from the bindings endpoint, replaced wholesale on each refresh) and
// the per-device status cache.
//
// The cache works around an annoyance of the vendor API: changes applied
// via a control POST are not immediately reflected in a subsequent GET.
// After issuing a command the client updates the cache optimistically
// and keeps serving that value until the API returns a response with a
// timestamp more recent than the local update.
//
// All public methods are safe for concurrent use. The cache mutex guards
// whole-entry replacement, which both the reconciler and the optimistic
// command path require to be atomic.
type Client struct {
	transport *transport

	mu      sync.RWMutex
	token   string
	devices map[string]Device
	cache   map[string]DeviceStatus

	logger Logger

	// now is the wall clock, replaceable in tests.
	now func() time.Time
}

// NewClient creates a client for the given API root.
//
// A zero timeout selects the default 10 second per-call budget. The
// client holds no token until SetUserToken is called.
func NewClient(apiRoot string, timeout time.Duration) *Client {
	return &Client{
		transport: newTransport(apiRoot, timeout),
		devices:   make(map[string]Device),
		cache:     make(map[string]DeviceStatus),
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// SetUserToken installs the bearer token used for all subsequent calls.
// Refresh scheduling is the caller's responsibility; the client only
// exposes the login primitive (GetUserToken).
func (c *Client) SetUserToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// RefreshBindings refreshes the list of devices bound to the account.
//
// The device mapping is replaced atomically and wholesale: devices no
// longer bound are dropped, and there is no merging with prior metadata.
// Status cache entries are deliberately left untouched so that a
// transient disappearance from the bindings list does not discard
// reconciled state.
func (c *Client) RefreshBindings(ctx context.Context) error {
	var resp struct {
		Devices []struct {
			DID             string `json:"did"`
			Protoc          int    `json:"protoc"`
			ProductName     string `json:"product_name"`
			DevAlias        string `json:"dev_alias"`
			MCUSoftVersion  string `json:"mcu_soft_version"`
			MCUHardVersion  string `json:"mcu_hard_version"`
			WifiSoftVersion string `json:"wifi_soft_version"`
			WifiHardVersion string `json:"wifi_hard_version"`
			IsOnline        bool   `json:"is_online"`
		} `json:"devices"`
	}

	if err := c.transport.get(ctx, "/app/bindings", c.currentToken(), &resp); err != nil {
		return fmt.Errorf("fetching bindings: %w", err)
	}

	devices := make(map[string]Device, len(resp.Devices))
	for _, raw := range resp.Devices {
		devices[raw.DID] = Device{
			ID:              raw.DID,
			ProtocolVersion: raw.Protoc,
			ProductName:     raw.ProductName,
			Alias:           raw.DevAlias,
			MCUSoftVersion:  raw.MCUSoftVersion,
			MCUHardVersion:  raw.MCUHardVersion,
			WifiSoftVersion: raw.WifiSoftVersion,
			WifiHardVersion: raw.WifiHardVersion,
			IsOnline:        raw.IsOnline,
		}
		// Device IDs are masked: people paste bridge logs into public
		// forums without thinking about what the IDs unlock.
		c.logger.Debug("binding found",
			"device_id", maskID(raw.DID),
			"product_name", raw.ProductName,
			"alias", raw.DevAlias,
			"is_online", raw.IsOnline,
		)
	}

	c.mu.Lock()
	c.devices = devices
	c.mu.Unlock()

	c.logger.Info("device bindings refreshed", "count", len(devices))
	return nil
}

// FetchData fetches the latest status for every bound device and
// reconciles it into the cache.
//
// For each device:
//   - A zero server timestamp means "no data available" (seen after a
//     device has been offline for months). The cache entry is left
//     untouched and no error is raised.
//   - A server timestamp older than the cached entry is discarded: a
//     locally-applied optimistic update is assumed more current. This is
//     the anti-flicker rule covering the vendor's stale-read window
//     after a write.
//   - Otherwise the cache entry is replaced wholesale with the server
//     snapshot. Equal timestamps favour the server value, which is
//     assumed authoritative at or after the local write instant.
//
// Fetches are serialised across devices to bound load on the
// rate-limited vendor API. The returned map is an independent snapshot
// of the full cache.
func (c *Client) FetchData(ctx context.Context) (map[string]DeviceStatus, error) {
	c.mu.RLock()
	ids := make([]string, 0, len(c.devices))
	for id := range c.devices {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	for _, did := range ids {
		var latest struct {
			UpdatedAt int64 `json:"updated_at"`
			Attr      Attrs `json:"attr"`
		}
		if err := c.transport.get(ctx, "/app/devdata/"+did+"/latest", c.currentToken(), &latest); err != nil {
			return nil, fmt.Errorf("fetching status for device %s: %w", maskID(did), err)
		}

		if latest.UpdatedAt == 0 {
			c.logger.Debug("no data available for device", "device_id", maskID(did))
			continue
		}

		c.mu.Lock()
		local := c.cache[did].Timestamp // zero when no entry exists
		if latest.UpdatedAt < local {
			c.mu.Unlock()
			c.logger.Debug("ignoring stale server update", "device_id", maskID(did),
				"server_ts", latest.UpdatedAt, "local_ts", local)
			continue
		}
		c.cache[did] = DeviceStatus{Timestamp: latest.UpdatedAt, Attrs: latest.Attr}
		c.mu.Unlock()

		c.logger.Debug("new data received", "device_id", maskID(did), "timestamp", latest.UpdatedAt)
	}

	return c.snapshot(), nil
}

// snapshot returns an independent copy of the full status cache.
func (c *Client) snapshot() map[string]DeviceStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]DeviceStatus, len(c.cache))
	for id, status := range c.cache {
		out[id] = status.clone()
	}
	return out
}

// Devices returns a copy of the current device registry keyed by device ID.
func (c *Client) Devices() map[string]Device {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Device, len(c.devices))
	for id, d := range c.devices {
		out[id] = d
	}
	return out
}

// Device returns the metadata for a single device.
func (c *Client) Device(id string) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[id]
	return d, ok
}

// Status returns the reconciled status snapshot for a single device.
//
// This is the only state exposed to consumers: a locally-optimistic
// value is indistinguishable from a server-confirmed one except by
// timestamp recency across polls.
func (c *Client) Status(id string) (DeviceStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	status, ok := c.cache[id]
	if !ok {
		return DeviceStatus{}, false
	}
	return status.clone(), true
}

// DeviceCount returns the number of bound devices.
func (c *Client) DeviceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.devices)
}

// maskID redacts a device identifier for logging.
func maskID(id string) string {
	return strings.Repeat("*", len(id))
}
