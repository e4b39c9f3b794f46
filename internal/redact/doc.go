// Package redact removes secrets and personal data from document text before
// it can reach a published post.
//
// Detection is driven by a [Registry] of categorized regex rules (credentials,
// private keys, certificates, tokens, connection strings, emails, phone
// numbers, IP addresses and internal hostnames), each category carrying a
// fixed severity and a replacement placeholder. The [Engine] runs the rules in
// a fixed category order, then three extra passes: fenced code blocks line by
// line, sensitive URL query parameters, and long base64 blobs whose decoded
// bytes mention a secret keyword.
//
// Every [Detection] points at its placeholder in the final redacted text:
// output is rebuilt into a fresh buffer per rule and earlier detections are
// re-based after each rewrite, so offsets never go stale.
//
// Path-based redaction is also supported: inbox files whose paths match
// configured glob patterns are refused outright rather than scanned.
package redact
