package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceState records the numeric attributes of a device state
// change as a single point in the device_state measurement.
//
// Non-numeric attributes are skipped; booleans are recorded as 0/1 so
// on/off transitions can be graphed. The write is non-blocking; data
// is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "dev-3fa8c21b")
//   - deviceType: Device type tag (e.g., "LIGHT", "THERMOSTAT")
//   - room: Room tag for grouping queries
//   - state: The state attributes to record
func (c *Client) WriteDeviceState(deviceID, deviceType, room string, state map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := make(map[string]interface{})
	for key, value := range state {
		switch v := value.(type) {
		case float64:
			fields[key] = v
		case int:
			fields[key] = float64(v)
		case int64:
			fields[key] = float64(v)
		case bool:
			if v {
				fields[key] = float64(1)
			} else {
				fields[key] = float64(0)
			}
		}
	}
	if len(fields) == 0 {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"type":      deviceType,
			"room":      room,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEnergyMetric writes an energy consumption measurement.
//
// Used for tracking power draw reported by devices that expose a
// powerUsage attribute.
//
// Parameters:
//   - deviceID: Device identifier
//   - powerWatts: Current power draw in watts
func (c *Client) WriteEnergyMetric(deviceID string, powerWatts float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"energy",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"power_watts": powerWatts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
