// Package health publishes and parses service health status.
//
// A service reports its health as a retained message on
// <root>/<service>/status/health. The agent publishes "up" when connected,
// registers "down" as the MQTT last will, and answers health checks
// received on <root>/<service>/cmd/health/check.
package health
