// Package output renders run reports and privacy detection reports.
//
// Formats:
//   - text: terminal summary (default)
//   - json: the full report
//   - markdown: a summary table suitable for a PR comment or a notes file
//   - sarif: SARIF v2.1.0, one result per detection
//
// Use [GetWriter] to obtain a [Writer] for a format name.
package output
