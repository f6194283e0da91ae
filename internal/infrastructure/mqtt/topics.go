package mqtt

import "fmt"

// Topic prefixes for the AuriHome MQTT namespace.
//
// Device topics themselves are free-form: each device binds an arbitrary
// base topic (for example "zigbee2mqtt/living_room/lamp") and commands go
// to "<base>/set". Only AuriHome's own topics live under the aurihome/
// prefix.
const (
	// TopicPrefix is the base for all AuriHome-owned topics.
	TopicPrefix = "aurihome"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "aurihome/system"

	// TopicPrefixDiscovery is the base for device discovery announcements.
	TopicPrefixDiscovery = "aurihome/discovery"

	// commandSuffix is appended to a device's base topic for outbound commands.
	commandSuffix = "/set"
)

// Topics provides builders for AuriHome MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// DeviceCommand returns the command topic for a device's base topic.
//
// Example: zigbee2mqtt/living_room/lamp/set
func (Topics) DeviceCommand(baseTopic string) string {
	return baseTopic + commandSuffix
}

// SystemStatus returns the system status topic.
//
// Example: aurihome/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Discovery returns the discovery announcement topic for a device.
//
// Example: aurihome/discovery/lamp-01
func (Topics) Discovery(deviceID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixDiscovery, deviceID)
}

// AllDiscovery returns a pattern matching all discovery announcements.
//
// Pattern: aurihome/discovery/#
func (Topics) AllDiscovery() string {
	return TopicPrefixDiscovery + "/#"
}
