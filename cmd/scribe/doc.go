// Scribe turns a folder of Markdown and text drafts into Hexo blog posts.
//
// Each run reads new documents from the inbox and takes them through staged
// processing: optimize, enhance, review, privacy redaction, format checks and
// publishing. Every stage writes a checkpoint per batch, so an interrupted
// run can be resumed from the last stage that finished.
//
// Usage:
//
//	scribe run                           # publish everything new in the inbox
//	scribe run --skip enhance --deploy   # skip a stage, deploy afterwards
//	scribe resume --from reviewed        # continue the latest run
//	scribe scan notes.md --fail-on high  # redact one document
//	scribe checkpoints list --stage published
//	scribe ledger reset drafts/post.md   # process a document again
package main
