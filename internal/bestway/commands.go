package bestway

import (
	"context"
	"fmt"
)

// Command identifies a logical control operation. The attribute names
// and encodings it translates to are device-type-specific and live in
// the encoding table below, never inline in command code.
type Command string

// Logical commands.
const (
	CmdSetPower        Command = "set_power"
	CmdSetFilter       Command = "set_filter"
	CmdSetHeat         Command = "set_heat"
	CmdSetTargetTemp   Command = "set_target_temperature"
	CmdSetLocked       Command = "set_locked"
	CmdSetBubbles      Command = "set_bubbles"
	CmdSetBubblesLevel Command = "set_bubbles_level"
	CmdSetJets         Command = "set_jets"
	CmdSetFilterTimer  Command = "set_filter_timer_hours"
)

// commandKeys holds the vendor attribute key for each logical field of
// one device type. An empty key means the field does not exist on that
// type.
type commandKeys struct {
	power      string
	filter     string
	heat       string
	bubbles    string
	jets       string
	lock       string
	targetTemp string
	timer      string
}

// typeEncoding describes how one device type encodes logical commands.
//
// Airjet spas encode everything as 0/1 flags. Airjet_V01 and Hydrojet
// models use named integer enums instead: filter ON is 2, heater ON is
// 3, and bubbles are a three-level integer mapping.
type typeEncoding struct {
	keys        commandKeys
	filterOn    int
	heatOn      int
	bubbles     BubblesMapping
	threeLevels bool
}

var encodings = map[DeviceType]typeEncoding{
	DeviceTypeAirjet: {
		keys: commandKeys{
			power:      "power",
			filter:     "filter_power",
			heat:       "heat_power",
			bubbles:    "wave_power",
			lock:       "locked",
			targetTemp: "temp_set",
		},
		filterOn: 1,
		heatOn:   1,
	},
	DeviceTypeAirjetV01: {
		keys: commandKeys{
			power:      "power",
			filter:     "filter",
			heat:       "heat",
			bubbles:    "wave",
			lock:       "locked",
			targetTemp: "temp_set",
		},
		filterOn:    2,
		heatOn:      3,
		bubbles:     AirjetV01Bubbles,
		threeLevels: true,
	},
	DeviceTypeHydrojet: {
		keys: commandKeys{
			power:      "power",
			filter:     "filter",
			heat:       "heat",
			bubbles:    "wave",
			jets:       "jet",
			targetTemp: "Tset",
		},
		filterOn:    2,
		heatOn:      3,
		bubbles:     HydrojetBubbles,
		threeLevels: true,
	},
	DeviceTypeHydrojetPro: {
		keys: commandKeys{
			power:      "power",
			filter:     "filter",
			heat:       "heat",
			bubbles:    "wave",
			jets:       "jet",
			targetTemp: "Tset",
		},
		filterOn:    2,
		heatOn:      3,
		bubbles:     HydrojetBubbles,
		threeLevels: true,
	},
	DeviceTypePoolFilter: {
		keys: commandKeys{
			power: "power",
			timer: "time",
		},
	},
}

// Send translates a logical command into the vendor attribute payload
// for the target device's type, issues the control POST, and applies the
// optimistic cache update on success.
//
// Preconditions: the device must be in the registry AND have a cache
// entry from at least one successful status fetch; otherwise the call
// fails with ErrDeviceNotRecognised without touching the network.
//
// The update is all-or-nothing: a failed POST leaves the cache
// untouched, a successful one applies the commanded value plus every
// device-type side effect in a single whole-entry replacement stamped
// with the current wall-clock time.
func (c *Client) Send(ctx context.Context, deviceID string, cmd Command, value any) error {
	dev, ok := c.Device(deviceID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotRecognised, maskID(deviceID))
	}

	c.mu.RLock()
	_, cached := c.cache[deviceID]
	c.mu.RUnlock()
	if !cached {
		return fmt.Errorf("%w: %s has no status yet", ErrDeviceNotRecognised, maskID(deviceID))
	}

	enc, ok := encodings[dev.Type()]
	if !ok {
		return fmt.Errorf("%w: device type %s", ErrUnsupportedCommand, dev.Type())
	}

	wire, local, err := buildPatches(enc, cmd, value)
	if err != nil {
		return err
	}

	c.logger.Debug("sending command", "device_id", maskID(deviceID), "command", string(cmd))
	if err := c.transport.post(ctx, "/app/control/"+deviceID, c.currentToken(),
		map[string]any{"attrs": wire}, nil); err != nil {
		return fmt.Errorf("sending %s: %w", cmd, err)
	}

	c.applyOptimistic(deviceID, wire, local)
	return nil
}

// applyOptimistic replaces the cache entry with a copy carrying the
// commanded attributes, the side effects, and the local write time.
func (c *Client) applyOptimistic(deviceID string, patches ...Attrs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.cache[deviceID]
	if !ok {
		// Entry vanished between the precondition check and the POST
		// response. Nothing to update; the next poll rebuilds it.
		return
	}

	updated := entry.clone()
	updated.Timestamp = c.now().Unix()
	for _, patch := range patches {
		for k, v := range patch {
			updated.Attrs[k] = v
		}
	}
	c.cache[deviceID] = updated
}

// buildPatches returns the attribute fragment sent to the API (wire) and
// the additional local-only side effects applied to the cache (local).
//
// The side effects mirror firmware behaviour observed on the devices:
// the spa turns dependent functions on or off itself, and the cache must
// reflect that immediately or consumers display contradictory state
// ("heating" with the filter showing off) until the next authoritative
// read.
func buildPatches(enc typeEncoding, cmd Command, value any) (wire, local Attrs, err error) {
	local = Attrs{}

	switch cmd {
	case CmdSetPower:
		on, err := coerceBool(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		wire = Attrs{enc.keys.power: flag(on)}
		if !on {
			// Powering off turns every other function off too.
			setIfPresent(local, enc.keys.filter, 0)
			setIfPresent(local, enc.keys.heat, 0)
			setIfPresent(local, enc.keys.bubbles, 0)
		}

	case CmdSetFilter:
		on, err := coerceBool(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.filter == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		apiValue := 0
		if on {
			apiValue = enc.filterOn
		}
		wire = Attrs{enc.keys.filter: apiValue}
		if on {
			setIfPresent(local, enc.keys.power, 1)
		} else {
			setIfPresent(local, enc.keys.heat, 0)
			setIfPresent(local, enc.keys.bubbles, 0)
		}

	case CmdSetHeat:
		on, err := coerceBool(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.heat == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		apiValue := 0
		if on {
			apiValue = enc.heatOn
		}
		wire = Attrs{enc.keys.heat: apiValue}
		if on {
			// The heater cannot run without circulation; the firmware
			// turns the pump on, so the cache must too.
			setIfPresent(local, enc.keys.power, 1)
			setIfPresent(local, enc.keys.filter, enc.filterOn)
		}

	case CmdSetTargetTemp:
		temp, err := coerceInt(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.targetTemp == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		wire = Attrs{enc.keys.targetTemp: temp}

	case CmdSetLocked:
		on, err := coerceBool(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.lock == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		wire = Attrs{enc.keys.lock: flag(on)}

	case CmdSetBubbles:
		on, err := coerceBool(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.bubbles == "" || enc.threeLevels {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		wire = Attrs{enc.keys.bubbles: flag(on)}
		if on {
			setIfPresent(local, enc.keys.power, 1)
		}

	case CmdSetBubblesLevel:
		level, err := coerceLevel(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.bubbles == "" || !enc.threeLevels {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		wire = Attrs{enc.keys.bubbles: enc.bubbles.ToAPIValue(level)}
		if level != BubblesOff {
			setIfPresent(local, enc.keys.power, 1)
		}

	case CmdSetJets:
		on, err := coerceBool(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.jets == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		wire = Attrs{enc.keys.jets: flag(on)}
		if on {
			setIfPresent(local, enc.keys.power, 1)
		}

	case CmdSetFilterTimer:
		hours, err := coerceInt(cmd, value)
		if err != nil {
			return nil, nil, err
		}
		if enc.keys.timer == "" {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedCommand, cmd)
		}
		wire = Attrs{enc.keys.timer: hours}

	default:
		return nil, nil, fmt.Errorf("%w: unknown command %q", ErrUnsupportedCommand, cmd)
	}

	return wire, local, nil
}

// setIfPresent records a side effect only for attribute keys the device
// type actually has.
func setIfPresent(patch Attrs, key string, value int) {
	if key != "" {
		patch[key] = value
	}
}

func flag(on bool) int {
	if on {
		return 1
	}
	return 0
}

func coerceBool(cmd Command, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	}
	return false, fmt.Errorf("%w: %s expects a boolean, got %T", ErrUnsupportedCommand, cmd, value)
}

func coerceInt(cmd Command, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	}
	return 0, fmt.Errorf("%w: %s expects an integer, got %T", ErrUnsupportedCommand, cmd, value)
}

func coerceLevel(cmd Command, value any) (BubblesLevel, error) {
	switch v := value.(type) {
	case BubblesLevel:
		return v, nil
	case string:
		switch BubblesLevel(v) {
		case BubblesOff, BubblesMedium, BubblesMax:
			return BubblesLevel(v), nil
		}
	}
	return "", fmt.Errorf("%w: %s expects off/medium/max, got %v", ErrUnsupportedCommand, cmd, value)
}

// Typed wrappers over Send for programmatic callers.

// SetPower turns the device on or off. Powering a spa off also turns
// off the filter, heater and bubbles.
func (c *Client) SetPower(ctx context.Context, deviceID string, on bool) error {
	return c.Send(ctx, deviceID, CmdSetPower, on)
}

// SetFilter turns the filter pump on or off. Turning it on implies
// power on; turning it off also stops the heater and bubbles.
func (c *Client) SetFilter(ctx context.Context, deviceID string, on bool) error {
	return c.Send(ctx, deviceID, CmdSetFilter, on)
}

// SetHeat turns the heater on or off. Turning the heater on also turns
// on the filter pump.
func (c *Client) SetHeat(ctx context.Context, deviceID string, on bool) error {
	return c.Send(ctx, deviceID, CmdSetHeat, on)
}

// SetTargetTemperature sets the target water temperature.
func (c *Client) SetTargetTemperature(ctx context.Context, deviceID string, temp int) error {
	return c.Send(ctx, deviceID, CmdSetTargetTemp, temp)
}

// SetLocked locks or unlocks the physical control panel.
func (c *Client) SetLocked(ctx context.Context, deviceID string, locked bool) error {
	return c.Send(ctx, deviceID, CmdSetLocked, locked)
}

// SetBubbles turns the bubbles on or off on models with a single
// bubbles speed (Airjet).
func (c *Client) SetBubbles(ctx context.Context, deviceID string, on bool) error {
	return c.Send(ctx, deviceID, CmdSetBubbles, on)
}

// SetBubblesLevel sets the bubbles level on three-level models
// (Airjet_V01, Hydrojet, Hydrojet Pro).
func (c *Client) SetBubblesLevel(ctx context.Context, deviceID string, level BubblesLevel) error {
	return c.Send(ctx, deviceID, CmdSetBubblesLevel, level)
}

// SetJets turns the hydro jets on or off (Hydrojet models).
func (c *Client) SetJets(ctx context.Context, deviceID string, on bool) error {
	return c.Send(ctx, deviceID, CmdSetJets, on)
}

// SetFilterTimerHours sets the filter timeout for pool filter devices.
func (c *Client) SetFilterTimerHours(ctx context.Context, deviceID string, hours int) error {
	return c.Send(ctx, deviceID, CmdSetFilterTimer, hours)
}
