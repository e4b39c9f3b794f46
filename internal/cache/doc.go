// Package cache stores redaction results on disk so unchanged documents are
// not rescanned on every run.
//
// An entry is keyed by the rule set fingerprint, the record field and the
// scanned text, and lives at <dir>/<hh>/<hash>.json where hh is the first
// byte of the hash. Entries hold only redacted text and detection metadata,
// never the removed values. Expired entries are dropped on read; Prune also
// drops entries left behind by an older rule set.
package cache
