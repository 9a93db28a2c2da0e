package bestway

import (
	"strings"
	"time"
)

// OfflineThreshold is the maximum age of a status report before the
// device is considered offline. This matches the staleness window the
// vendor's own app appears to use.
const OfflineThreshold = 1000 * time.Second

// DeviceType classifies a device based on the product name reported by
// the bindings endpoint.
type DeviceType string

// Device type constants.
const (
	DeviceTypeAirjet      DeviceType = "airjet"
	DeviceTypeAirjetV01   DeviceType = "airjet_v01"
	DeviceTypeHydrojet    DeviceType = "hydrojet"
	DeviceTypeHydrojetPro DeviceType = "hydrojet_pro"
	DeviceTypePoolFilter  DeviceType = "pool_filter"
	DeviceTypeUnknown     DeviceType = "unknown"
)

// DeviceTypeFromProductName maps the 'product_name' field in the API
// response to a device type.
//
// The match is exact; any unrecognised name maps to DeviceTypeUnknown so
// that new products appearing on an account never break the bridge.
func DeviceTypeFromProductName(productName string) DeviceType {
	switch productName {
	case "Airjet":
		return DeviceTypeAirjet
	case "Airjet_V01":
		return DeviceTypeAirjetV01
	case "Hydrojet":
		return DeviceTypeHydrojet
	case "Hydrojet_Pro":
		return DeviceTypeHydrojetPro
	case "泳池过滤器":
		// Chinese product name, translates to "pool filter"
		return DeviceTypePoolFilter
	}
	return DeviceTypeUnknown
}

// Device holds the static metadata for a device bound to the account.
// The set of devices is replaced wholesale on each bindings refresh.
type Device struct {
	ID              string `json:"id"`
	ProtocolVersion int    `json:"protocol_version"`
	ProductName     string `json:"product_name"`
	Alias           string `json:"alias"`
	MCUSoftVersion  string `json:"mcu_soft_version"`
	MCUHardVersion  string `json:"mcu_hard_version"`
	WifiSoftVersion string `json:"wifi_soft_version"`
	WifiHardVersion string `json:"wifi_hard_version"`
	IsOnline        bool   `json:"is_online"`
}

// Type returns the device type derived from the product name.
func (d Device) Type() DeviceType {
	return DeviceTypeFromProductName(d.ProductName)
}

// Attrs is the open, device-type-specific attribute bag returned by the
// vendor status endpoint. The schema varies by device type and is only
// partially known, so values are kept raw with typed accessors for the
// known keys.
type Attrs map[string]any

// Int returns the named attribute as an integer.
//
// JSON decoding produces float64 for numbers and the vendor occasionally
// reports booleans for 0/1 flags, so all three representations are accepted.
func (a Attrs) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Bool returns the named attribute interpreted as a boolean, where any
// non-zero integer is true.
func (a Attrs) Bool(key string) (bool, bool) {
	v, ok := a.Int(key)
	if !ok {
		return false, false
	}
	return v != 0, true
}

// clone returns an independent copy of the attribute bag.
// Vendor attribute values are scalars, so a shallow copy is sufficient.
func (a Attrs) clone() Attrs {
	if a == nil {
		return nil
	}
	cpy := make(Attrs, len(a))
	for k, v := range a {
		cpy[k] = v
	}
	return cpy
}

// DeviceStatus is a snapshot of the status of a device.
//
// Timestamp is seconds since epoch: either the server's updated_at value
// or the local wall-clock time at which an optimistic update was applied.
// Under correct reconciliation it is monotonically non-decreasing for
// the lifetime of the cache entry.
type DeviceStatus struct {
	Timestamp int64 `json:"timestamp"`
	Attrs     Attrs `json:"attrs"`
}

// Online determines whether the device is online based on the age of the
// latest update.
func (s DeviceStatus) Online(now time.Time) bool {
	return s.Timestamp > now.Add(-OfflineThreshold).Unix()
}

// clone returns an independent copy of the status snapshot.
func (s DeviceStatus) clone() DeviceStatus {
	return DeviceStatus{Timestamp: s.Timestamp, Attrs: s.Attrs.clone()}
}

// ErrorFlags collects the error indicator attributes from the status.
// Airjet spas report system_errN flags plus an earth-fault flag,
// Airjet_V01 and Hydrojet models report E01..E09, and pool filters
// report a single error flag. Keys not present on the device type are
// simply absent.
func (s DeviceStatus) ErrorFlags() map[string]bool {
	flags := make(map[string]bool)
	for key := range s.Attrs {
		if !isErrorAttr(key) {
			continue
		}
		if v, ok := s.Attrs.Bool(key); ok {
			flags[key] = v
		}
	}
	return flags
}

// HasError reports whether any error flag is raised.
func (s DeviceStatus) HasError() bool {
	for _, raised := range s.ErrorFlags() {
		if raised {
			return true
		}
	}
	return false
}

func isErrorAttr(key string) bool {
	if key == "earth" || key == "error" {
		return true
	}
	if rest, ok := strings.CutPrefix(key, "system_err"); ok && allDigits(rest) {
		return true
	}
	if len(key) == 3 && key[0] == 'E' && allDigits(key[1:]) {
		return true
	}
	return false
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// UserToken is the authentication token obtained (and ideally stored by
// the caller) following a successful login. The bridge only compares the
// expiry; the token string itself is opaque.
type UserToken struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"`
}

// ExpiresWithin reports whether the token expires within the given margin.
func (t UserToken) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return t.Expiry <= now.Add(margin).Unix()
}
