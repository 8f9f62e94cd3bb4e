package model

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

const (
	// MaxPort is the highest valid TCP port number (2^16 - 1).
	MaxPort = 65535

	// DefaultWorkers is the worker count used when -j is not given.
	DefaultWorkers = 4

	// MaxWorkers is the largest accepted worker count. With 65535 workers
	// every worker owns at most one port, so more workers would only add
	// idle goroutines.
	MaxWorkers = MaxPort
)

// ParseTarget converts a textual IPv4 or IPv6 address into a scan target.
//
// Host names are rejected on purpose: the scanner never resolves names, so
// the caller must supply a literal address. Returns a CLIError with
// ExitInvalidArgs on failure.
func ParseTarget(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, WrapCLIError(ExitInvalidArgs,
			"not a valid IPADDR; must be IPv4 or IPv6", err)
	}
	return addr, nil
}

// ParseWorkers converts the -j flag value into a worker count.
//
// The value must be an integer in [1, MaxWorkers]. Zero is rejected because a
// scan with no workers would silently report nothing.
func ParseWorkers(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, WrapCLIError(ExitInvalidArgs, "failed to parse thread number", err)
	}
	if err := ValidateWorkers(n); err != nil {
		return 0, err
	}
	return n, nil
}

// ValidateWorkers checks that n is a usable worker count.
func ValidateWorkers(n int) error {
	if n < 1 || n > MaxWorkers {
		return NewCLIError(ExitInvalidArgs,
			fmt.Sprintf("thread number %d out of range (1-%d)", n, MaxWorkers))
	}
	return nil
}

// ScanResult is the outcome of a single scan invocation, as rendered by the
// CLI. OpenPorts is sorted in ascending order and never contains duplicates.
type ScanResult struct {
	// Target is the scanned address.
	Target netip.Addr `json:"target"`

	// Workers is the number of workers the port space was split across.
	Workers int `json:"workers"`

	// OpenPorts lists every port that accepted a TCP connection.
	OpenPorts []uint16 `json:"openPorts"`
}

// ExitCode defines the CLI exit codes. These allow scripts to tell a bad
// invocation apart from a failed scan.
type ExitCode int

const (
	// ExitSuccess indicates the scan completed, whatever it found.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidArgs indicates the address, thread count or config file
	// could not be parsed.
	ExitInvalidArgs ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitContainerNotFound indicates the requested container does not
	// exist or has no address to scan.
	ExitContainerNotFound ExitCode = 4

	// ExitScanFailed indicates the scan aborted, e.g. because standard
	// output became unwritable.
	ExitScanFailed ExitCode = 5
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
