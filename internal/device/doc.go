// Package device manages the authoritative record of every device
// AuriHome Core knows about.
//
// A Device carries identity (ID, name, type, room), connectivity
// (status, last seen, optional MQTT topic binding), and a free-form
// state map whose valid attributes depend on the device type.
//
// The package is layered:
//
//	Repository (repository.go) - SQLite persistence
//	Registry   (registry.go)   - cached, thread-safe operations on top
//
// State changes go through ApplyStateDelta, which merges a partial
// delta into the existing state: attributes absent from the delta are
// preserved, and applying the same delta twice is a no-op on the
// resulting state. Direct writes are validated strictly against the
// type's attribute set (ValidateState); transport input is filtered
// instead (FilterState).
package device
