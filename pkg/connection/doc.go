// Package connection provides retry helpers for broker-facing operations.
//
// Backoff computes exponential delays with jitter. Retry uses it to repeat an
// idempotent operation, such as creating the persistent MQTT session, while
// the broker is not yet reachable.
package connection
