// Package security summarizes an engine configuration into a report of its
// security posture, with warnings for settings that weaken it.
//
// # What this package must NOT do
//
//   - Read configuration files or the environment.
//   - Change settings. The report is advisory.
package security
