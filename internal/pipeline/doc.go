// Package pipeline implements the orchestration loop that every state
// delta flows through, whichever of the three sources produced it:
// inbound transport messages, user commands, or automation actions.
//
// Applying a delta merges it into the device store, appends a
// DEVICE_STATE event log entry, optionally samples telemetry, mirrors
// user and automation writes to hardware through the bridge, and hands
// the merged state to the automation engine's event triggers. The
// pipeline also implements the engine's and bridge's recorder
// interfaces, giving scenario firings, action failures, and transport
// state changes a single path into the event log.
package pipeline
