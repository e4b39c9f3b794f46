// Package config loads and merges scribe configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (SCRIBE_INBOX_DIR, SCRIBE_BATCH_SIZE, SCRIBE_FAIL_ON, etc.)
//  3. A .env file in the working directory
//  4. Config file ($XDG_CONFIG_HOME/scribe/config.json or --config)
//  5. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write a config file,
// and [SetField] to update a single key.
package config
