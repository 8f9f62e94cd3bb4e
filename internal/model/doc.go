// Package model defines the domain types and value objects for the
// ip-sniffer CLI.
//
// This package contains pure data structures with no external dependencies.
// A scan is fully described by a Target address and a worker count; the
// result is a sorted list of open TCP ports. Nothing is persisted.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
