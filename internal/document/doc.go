// Package document defines the Record that flows through the pipeline and
// its closed set of lifecycle statuses.
//
// Statuses advance monotonically from read to published. Each stage has a
// failure variant (read_failed, review_failed, ...) which is terminal: no
// later stage acts on a failed record.
package document
