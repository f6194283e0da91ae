// Package bridge connects the device state store to real hardware over
// MQTT. It subscribes to one topic per bound device, translates inbound
// wire payloads into internal state deltas for the orchestration
// pipeline, and translates outbound partial-state commands onto each
// device's <topic>/set command topic.
//
// Messages on topics with no bound device are discarded silently, and
// commands are dropped with a warning while the broker is unreachable.
// The bridge holds no outbound queue.
package bridge
