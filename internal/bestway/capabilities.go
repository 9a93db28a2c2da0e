package bestway

// Capability names a control surface a device type exposes. Consumers
// use the capability list to decide which entities or commands to offer
// for a device without knowing the vendor attribute encodings.
type Capability string

// Capabilities.
const (
	CapPower        Capability = "power"
	CapFilter       Capability = "filter"
	CapHeat         Capability = "heat"
	CapTargetTemp   Capability = "target_temperature"
	CapLock         Capability = "lock"
	CapBubbles      Capability = "bubbles"
	CapBubblesLevel Capability = "bubbles_level"
	CapJets         Capability = "jets"
	CapFilterTimer  Capability = "filter_timer"
	CapErrors       Capability = "errors"
)

var capabilities = map[DeviceType][]Capability{
	DeviceTypeAirjet: {
		CapPower, CapFilter, CapHeat, CapTargetTemp, CapLock, CapBubbles, CapErrors,
	},
	DeviceTypeAirjetV01: {
		CapPower, CapFilter, CapHeat, CapTargetTemp, CapLock, CapBubblesLevel, CapErrors,
	},
	DeviceTypeHydrojet: {
		CapPower, CapFilter, CapHeat, CapTargetTemp, CapBubblesLevel, CapJets, CapErrors,
	},
	DeviceTypeHydrojetPro: {
		CapPower, CapFilter, CapHeat, CapTargetTemp, CapBubblesLevel, CapJets, CapErrors,
	},
	DeviceTypePoolFilter: {
		CapPower, CapFilterTimer, CapErrors,
	},
}

// Capabilities returns the control surfaces available for a device
// type. Unknown types have none.
func Capabilities(dt DeviceType) []Capability {
	caps, ok := capabilities[dt]
	if !ok {
		return nil
	}
	out := make([]Capability, len(caps))
	copy(out, caps)
	return out
}

// Supports reports whether a device type exposes a capability.
func Supports(dt DeviceType, c Capability) bool {
	for _, have := range capabilities[dt] {
		if have == c {
			return true
		}
	}
	return false
}
