// Package prometheus renders authgate metrics in the Prometheus text
// exposition format.
//
// Counter names are prefixed authgate_ and end in _total. The single
// histogram is authgate_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
