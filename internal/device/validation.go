package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength = 100
	maxRoomLength = 100

	// Size limits for the state map to prevent memory exhaustion
	// from malformed payloads.
	maxStateKeys      = 100
	maxStringValueLen = 1024

	// idPrefix is prepended to generated device identifiers.
	idPrefix = "dev-"

	// idUUIDLen is the number of UUID characters used in generated IDs.
	idUUIDLen = 8
)

// Pre-computed validation sets for O(1) lookups.
var (
	validDeviceTypes map[DeviceType]struct{}
	validStatuses    map[Status]struct{}
)

func init() {
	validDeviceTypes = make(map[DeviceType]struct{}, len(AllDeviceTypes()))
	for _, t := range AllDeviceTypes() {
		validDeviceTypes[t] = struct{}{}
	}

	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}
}

// ValidateDevice performs comprehensive validation on a device.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}

	if len(d.Room) > maxRoomLength {
		return fmt.Errorf("%w: room exceeds %d characters", ErrInvalidDevice, maxRoomLength)
	}

	if err := ValidateDeviceType(d.Type); err != nil {
		return err
	}

	if d.Status != "" {
		if err := ValidateStatus(d.Status); err != nil {
			return err
		}
	}

	if d.Topic != nil && strings.TrimSpace(*d.Topic) == "" {
		return fmt.Errorf("%w: topic cannot be blank", ErrInvalidDevice)
	}

	if err := ValidateState(d.Type, d.State); err != nil {
		return err
	}

	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateDeviceType checks if a device type is valid.
func ValidateDeviceType(deviceType DeviceType) error {
	if _, ok := validDeviceTypes[deviceType]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDeviceType, deviceType)
}

// ValidateStatus checks if a status is valid.
func ValidateStatus(status Status) error {
	if _, ok := validStatuses[status]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
}

// ValidateState checks that every attribute in the state map is valid
// for the given device type and within size limits.
//
// This is the strict check applied to direct writes (API, automation
// actions): an unknown attribute is an error. Transport input uses
// FilterState instead, which silently drops unknown attributes.
func ValidateState(t DeviceType, state State) error {
	if len(state) > maxStateKeys {
		return fmt.Errorf("%w: state exceeds max keys (%d)", ErrInvalidDevice, maxStateKeys)
	}

	allowed := AttributesForType(t)
	for key, value := range state {
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("%w: %q is not valid for type %s", ErrInvalidAttribute, key, t)
		}
		if s, ok := value.(string); ok && len(s) > maxStringValueLen {
			return fmt.Errorf("%w: %q value too long", ErrInvalidAttribute, key)
		}
	}

	return nil
}

// FilterState returns a copy of the state map containing only the
// attributes valid for the given device type. Used for transport
// input, where devices may report attributes the schema does not
// model; those are dropped rather than rejected.
func FilterState(t DeviceType, state State) State {
	allowed := AttributesForType(t)
	filtered := make(State, len(state))
	for key, value := range state {
		if _, ok := allowed[key]; ok {
			filtered[key] = value
		}
	}
	return filtered
}

// GenerateID creates a new device identifier.
// Format: dev-<8 hex chars>, e.g. "dev-3fa8c21b".
func GenerateID() string {
	return idPrefix + uuid.NewString()[:idUUIDLen]
}
