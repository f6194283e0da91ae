// Package influxdb provides the optional telemetry sink for AuriHome Core.
//
// When telemetry is enabled, numeric device state attributes
// (temperature, brightness, power draw) are written to InfluxDB as
// time-series points for graphing and analysis. Writes are batched and
// non-blocking; a failed or disabled sink never affects device control.
//
// The client wraps influxdb-client-go with connection management,
// health checks, and an async error callback.
package influxdb
