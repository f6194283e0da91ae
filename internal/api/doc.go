// Package api provides the HTTP REST surface for AuriHome Core.
//
// It exposes device CRUD and state commands, scenario management and manual
// runs, event log listing, and system status/reset endpoints to external
// user interfaces.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
