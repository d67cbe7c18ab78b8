// Package cli implements the command-line interface for pydocs.
//
// The cli package provides the Cobra root command. It takes the parser mode
// as its only argument, builds the configuration from defaults, an optional
// YAML file and flags, opens the SQLite response cache, and wires the fetcher,
// parser, storage and output packages together for a single run.
package cli
