// Package config loads and validates AuriHome Core configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (Default)
//  2. A YAML file (config.yaml)
//  3. AURIHOME_* environment variables
//
// The MQTT section is the only part of SystemSettings the core consumes
// directly: broker address and credentials for the transport bridge.
// Energy and telemetry parameters are read here too but only reported
// onwards; the presentation layer owns their meaning.
package config
