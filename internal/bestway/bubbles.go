package bestway

// BubblesLevel is the logical bubbles setting available on three-level
// spa models.
type BubblesLevel string

// Bubbles levels.
const (
	BubblesOff    BubblesLevel = "off"
	BubblesMedium BubblesLevel = "medium"
	BubblesMax    BubblesLevel = "max"
)

// bubblesValues holds the integer encodings for one bubbles level.
//
// write is the value sent to the API when setting the level. read lists
// every value the API may report for the level: Airjet_V01 devices have
// been observed reporting MEDIUM as either 50 or 51 depending on
// firmware, so the read-side mapping is a set-membership test rather
// than an equality check.
type bubblesValues struct {
	write int
	read  []int
}

// BubblesMapping maps off, medium and max bubbles levels to the integer
// API values used by one device model.
type BubblesMapping struct {
	off    bubblesValues
	medium bubblesValues
	max    bubblesValues
}

// Per-model bubbles encodings.
var (
	// AirjetV01Bubbles is the mapping for Airjet_V01 spas.
	AirjetV01Bubbles = BubblesMapping{
		off:    bubblesValues{write: 0, read: []int{0}},
		medium: bubblesValues{write: 50, read: []int{50, 51}},
		max:    bubblesValues{write: 100, read: []int{100}},
	}

	// HydrojetBubbles is the mapping for Hydrojet and Hydrojet Pro spas.
	HydrojetBubbles = BubblesMapping{
		off:    bubblesValues{write: 0, read: []int{0}},
		medium: bubblesValues{write: 40, read: []int{40}},
		max:    bubblesValues{write: 100, read: []int{100}},
	}
)

// ToAPIValue returns the integer written to the API to set the given level.
func (m BubblesMapping) ToAPIValue(level BubblesLevel) int {
	switch level {
	case BubblesMax:
		return m.max.write
	case BubblesMedium:
		return m.medium.write
	default:
		return m.off.write
	}
}

// FromAPIValue returns the logical level for an integer reported by the
// API. Unexpected values are treated as OFF rather than failing, since
// an unknown reading should not take an entity out of service.
func (m BubblesMapping) FromAPIValue(value int) BubblesLevel {
	for _, v := range m.max.read {
		if v == value {
			return BubblesMax
		}
	}
	for _, v := range m.medium.read {
		if v == value {
			return BubblesMedium
		}
	}
	return BubblesOff
}

// bubblesMappingForType returns the bubbles encoding for a device type,
// or false for models with simple on/off bubbles.
func bubblesMappingForType(dt DeviceType) (BubblesMapping, bool) {
	switch dt {
	case DeviceTypeAirjetV01:
		return AirjetV01Bubbles, true
	case DeviceTypeHydrojet, DeviceTypeHydrojetPro:
		return HydrojetBubbles, true
	}
	return BubblesMapping{}, false
}

// BubblesLevelFromStatus reads the current bubbles level out of a status
// snapshot for three-level device types. The second return is false for
// device types without levelled bubbles or when the attribute is absent.
func BubblesLevelFromStatus(dt DeviceType, status DeviceStatus) (BubblesLevel, bool) {
	mapping, ok := bubblesMappingForType(dt)
	if !ok {
		return "", false
	}
	enc, ok := encodings[dt]
	if !ok {
		return "", false
	}
	raw, ok := status.Attrs.Int(enc.keys.bubbles)
	if !ok {
		return "", false
	}
	return mapping.FromAPIValue(raw), true
}
