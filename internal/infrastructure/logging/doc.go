// Package logging provides structured logging for AuriHome Core.
//
// It wraps the standard library's log/slog with configuration-driven
// level filtering, JSON or text output, and default service fields.
//
// Packages that need logging define their own small Logger interface and
// accept any implementation; *logging.Logger satisfies all of them. This
// keeps the domain packages free of a hard dependency on this package.
//
// # Usage
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("device created", "id", dev.ID)
//
//	storeLog := log.With("component", "store")
package logging
