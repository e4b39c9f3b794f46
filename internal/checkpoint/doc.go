// Package checkpoint persists batches of document records between stages.
//
// A checkpoint is named batch_<YYYYMMDD_HHMMSS>_<seq><suffix>.json, where the
// suffix names the stage that wrote it (empty for the reader). FileStore
// writes through a temp file and rename so a crash never leaves a partial
// checkpoint behind.
package checkpoint
