// Package eventlog maintains the bounded, append-only system event log.
//
// Entries record device state changes, scenario triggers, and system
// activity. The store retains only the most recent Retention entries,
// evicting the oldest by insertion order on every append, so the table
// never grows beyond a fixed size regardless of uptime.
package eventlog
