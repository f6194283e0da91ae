package bridge

import (
	"encoding/json"
	"strings"

	"github.com/aurihome/aurihome-core/internal/device"
)

// Wire field names. Inbound payloads use the hardware's vocabulary;
// internal state uses the device package's attribute names. The two
// tables below are inverses of each other for the round-trippable
// fields; sensor readings (temperature, humidity, contact) only travel
// inbound because they cannot be commanded.
const (
	wireState          = "state"
	wireBrightness     = "brightness"
	wireColor          = "color"
	wireTemperature    = "temperature"
	wireHumidity       = "humidity"
	wirePowerUsage     = "power_usage"
	wireContact        = "contact"
	wireTargetSetpoint = "current_heating_setpoint"
	wireColorHex       = "hex"
	wirePayloadOn      = "ON"
	wirePayloadOff     = "OFF"
)

// TranslateInbound converts a raw wire payload into an internal state
// delta. Structured payloads have their known fields mapped and the rest
// dropped; a bare "ON"/"OFF" string is treated as a power signal.
// Anything else yields an empty delta, which callers discard.
func TranslateInbound(raw []byte) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return translateBareSignal(raw)
	}

	delta := make(map[string]any)
	for wire, value := range fields {
		switch wire {
		case wireState:
			if s, ok := value.(string); ok {
				switch strings.ToUpper(s) {
				case wirePayloadOn:
					delta[device.AttrPower] = true
				case wirePayloadOff:
					delta[device.AttrPower] = false
				}
			}
		case wireBrightness:
			if n, ok := value.(float64); ok {
				delta[device.AttrBrightness] = n
			}
		case wireColor:
			if hex := extractColorHex(value); hex != "" {
				delta[device.AttrColor] = hex
			}
		case wireTemperature:
			if n, ok := value.(float64); ok {
				delta[device.AttrTemperature] = n
			}
		case wireHumidity:
			if n, ok := value.(float64); ok {
				delta[device.AttrHumidity] = n
			}
		case wirePowerUsage:
			if n, ok := value.(float64); ok {
				delta[device.AttrPowerUsage] = n
			}
		case wireContact:
			if b, ok := value.(bool); ok {
				delta[device.AttrContact] = b
			}
		}
	}
	return delta
}

// translateBareSignal handles unstructured payloads. Only "ON" and
// "OFF" carry meaning; everything else is ignored.
func translateBareSignal(raw []byte) map[string]any {
	switch strings.ToUpper(strings.TrimSpace(string(raw))) {
	case wirePayloadOn:
		return map[string]any{device.AttrPower: true}
	case wirePayloadOff:
		return map[string]any{device.AttrPower: false}
	default:
		return map[string]any{}
	}
}

// extractColorHex pulls a colour out of either the zigbee-style object
// form {"hex": "#RRGGBB"} or a plain string.
func extractColorHex(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		if hex, ok := v[wireColorHex].(string); ok {
			return hex
		}
	}
	return ""
}

// TranslateOutbound converts an internal state delta into the wire
// command payload published to <topic>/set. Attributes with no wire
// equivalent are dropped.
func TranslateOutbound(delta map[string]any) map[string]any {
	payload := make(map[string]any)
	for attr, value := range delta {
		switch attr {
		case device.AttrPower:
			if b, ok := value.(bool); ok {
				payload[wireState] = onOff(b)
			}
		case device.AttrBrightness:
			payload[wireBrightness] = value
		case device.AttrColor:
			if s, ok := value.(string); ok {
				payload[wireColor] = map[string]any{wireColorHex: s}
			}
		case device.AttrTargetTemperature:
			payload[wireTargetSetpoint] = value
		}
	}
	return payload
}

func onOff(b bool) string {
	if b {
		return wirePayloadOn
	}
	return wirePayloadOff
}
