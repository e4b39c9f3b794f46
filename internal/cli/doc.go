// Package cli wires together the Cobra command tree for the scribe binary.
//
// It defines the root command and all subcommands (run, resume, scan,
// checkpoints, ledger, config, cache, version), binds flags, reads
// configuration, assembles the pipeline, and returns exit codes suitable for
// scripting: 0 on success, 1 when a run fails or a scan meets --fail-on, 2 on
// usage or configuration errors.
package cli
