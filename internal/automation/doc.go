// Package automation implements the scenario engine: user-defined
// conditional automations evaluated against current device state.
//
// A Scenario carries a trigger (manual, scheduled, or device-event) and
// an ordered list of logic blocks. Each block combines conditions with
// AND/OR and runs its then or else action list; actions are partial
// state patches applied through the orchestration pipeline, which feeds
// the resulting changes back into event-trigger evaluation. A depth
// counter on the trigger chain breaks feedback loops.
//
// The package mirrors the device package's layering: a SQLite-backed
// Repository, a caching Registry on top, and the Engine consuming the
// Registry. The Scheduler maps SCHEDULE triggers onto cron jobs.
package automation
