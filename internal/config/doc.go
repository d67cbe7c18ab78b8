// Package config holds the run configuration for pydocs.
//
// Values come from Default, are overlaid by an optional YAML file (Load) and
// finally by command-line flags. The expected-status table used by the PEP
// reconciliation lives here so it can be replaced from the YAML file without
// touching code.
package config
