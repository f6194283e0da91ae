package device

import "time"

// Device represents a controllable or monitorable entity in the home.
// This matches the database schema in migrations/20260301_000000_initial_schema.up.sql.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type DeviceType `json:"type"`
	Room string     `json:"room"`

	// Connectivity
	Status Status `json:"status"`

	// Topic is the MQTT base topic this device is bound to, if any.
	// Inbound messages on this topic update the device; commands are
	// published to "<topic>/set". Unbound devices are API-only.
	Topic *string `json:"topic,omitempty"`

	// Current state as attribute key/value pairs. Valid attributes
	// depend on Type (see AttributesForType).
	State State `json:"state"`

	// LastSeen is the time of the last state change or transport
	// message for this device. It only ever moves forward.
	LastSeen time.Time `json:"last_seen"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// All map fields are cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	cpy.State = deepCopyMap(d.State)

	if d.Topic != nil {
		topic := *d.Topic
		cpy.Topic = &topic
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds the current device state as attribute key/value pairs.
//
// Examples:
//   - Light: {"power": true, "brightness": 75, "color": "#ffcc00"}
//   - Thermostat: {"temperature": 21.5, "targetTemperature": 22, "mode": "heat"}
//   - Sensor: {"motion": false, "contact": true, "battery": 87}
type State map[string]any

// DeviceType represents the kind of device.
type DeviceType string //nolint:revive // device.DeviceType is clearer than device.Type in calling code

// DeviceType constants.
const (
	TypeLight      DeviceType = "LIGHT"
	TypeSensor     DeviceType = "SENSOR"
	TypeLock       DeviceType = "LOCK"
	TypeThermostat DeviceType = "THERMOSTAT"
	TypeCamera     DeviceType = "CAMERA"
	TypeSwitch     DeviceType = "SWITCH"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		TypeLight, TypeSensor, TypeLock, TypeThermostat, TypeCamera, TypeSwitch,
	}
}

// Status represents the device connectivity state.
type Status string

// Status constants.
const (
	// StatusOnline means the device has recently reported state.
	StatusOnline Status = "ONLINE"

	// StatusOffline means the device is registered but not reporting.
	StatusOffline Status = "OFFLINE"

	// StatusDisconnected means the transport link to the device is down.
	StatusDisconnected Status = "DISCONNECTED"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusOnline, StatusOffline, StatusDisconnected}
}

// State attribute names. The set of attributes a device may carry
// depends on its type; AttributesForType returns the allowed set.
const (
	AttrPower             = "power"
	AttrPowerUsage        = "powerUsage"
	AttrBattery           = "battery"
	AttrBrightness        = "brightness"
	AttrColor             = "color"
	AttrTemperature       = "temperature"
	AttrHumidity          = "humidity"
	AttrTargetTemperature = "targetTemperature"
	AttrMode              = "mode"
	AttrLocked            = "locked"
	AttrPinRequired       = "pinRequired"
	AttrMotion            = "motion"
	AttrContact           = "contact"
	AttrIsRecording       = "isRecording"
	AttrLastEventURL      = "lastEventUrl"
	AttrStreamURL         = "streamUrl"
)

// baseAttributes are valid for every device type.
var baseAttributes = []string{AttrPower, AttrPowerUsage, AttrBattery}

// typeAttributes lists the additional attributes each type carries
// beyond the base set.
var typeAttributes = map[DeviceType][]string{
	TypeLight:      {AttrBrightness, AttrColor},
	TypeThermostat: {AttrTemperature, AttrHumidity, AttrTargetTemperature, AttrMode},
	TypeLock:       {AttrLocked, AttrPinRequired},
	TypeSensor:     {AttrTemperature, AttrHumidity, AttrMotion, AttrContact},
	TypeCamera:     {AttrIsRecording, AttrLastEventURL, AttrStreamURL},
	TypeSwitch:     {},
}

// AttributesForType returns the set of state attributes valid for a
// device type. The returned map is freshly allocated; callers may
// modify it.
func AttributesForType(t DeviceType) map[string]struct{} {
	extra := typeAttributes[t]
	attrs := make(map[string]struct{}, len(baseAttributes)+len(extra))
	for _, a := range baseAttributes {
		attrs[a] = struct{}{}
	}
	for _, a := range extra {
		attrs[a] = struct{}{}
	}
	return attrs
}
