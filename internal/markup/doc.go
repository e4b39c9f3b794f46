// Package markup holds the text heuristics behind the content stages:
// title and slug derivation, summaries, tags, categories, the reviewer's
// corrections, the format lint and post front matter.
package markup
