// Package mqtt provides the MQTT client used by AuriHome Core to talk
// to the broker that connects it to physical devices.
//
// The client wraps paho.mqtt.golang with:
//   - Connection lifecycle management (connect, LWT, graceful close)
//   - Automatic reconnection at a fixed, configurable interval
//   - Subscription tracking and restoration after reconnect
//   - Panic recovery around message handlers
//
// Device topics are free-form and bound per device; commands are
// published to "<base_topic>/set". AuriHome's own status and discovery
// topics live under the aurihome/ prefix (see topics.go).
//
// Publishing while disconnected returns ErrNotConnected; callers decide
// whether to log and drop or to fail the operation.
package mqtt
