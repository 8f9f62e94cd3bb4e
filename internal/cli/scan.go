// Package cli — scan.go holds the scan workflow shared by the root command
// and the container subcommand.
//
// Workflow:
//  1. Resolve settings: defaults, then the config file, then explicit flags
//  2. Build the logger and the port scanner
//  3. Run the scan; markers go to stdout as open ports are found
//  4. Print the sorted result as text or JSON
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/ip-sniffer/internal/config"
	"github.com/mmr-tortoise/ip-sniffer/internal/model"
	"github.com/mmr-tortoise/ip-sniffer/internal/port"
)

// resolveSettings merges the config file (if any) with the flags that were
// given explicitly. A flag left at its zero value never overrides the file.
func resolveSettings(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("threads") {
		n, err := model.ParseWorkers(flags.threads)
		if err != nil {
			return nil, err
		}
		cfg.Threads = n
	}
	if changed("json") {
		cfg.JSON = jsonOutput
	}
	if changed("verbose") {
		cfg.Verbose = flags.verbose
	}
	if changed("max-concurrency") {
		cfg.MaxConcurrency = flags.maxConcurrency
	}
	if changed("timeout") {
		d, err := time.ParseDuration(flags.timeout)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitInvalidArgs,
				fmt.Sprintf("invalid timeout %q", flags.timeout), err)
		}
		cfg.Timeout = d
	}
	if changed("marker") {
		cfg.Marker = flags.marker
	}

	if cfg.JSON {
		jsonOutput = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runScan scans target with the resolved settings and prints the result to
// the command's stdout.
func runScan(cmd *cobra.Command, cfg *config.Config, target netip.Addr, scanOpts ...port.Option) error {
	logger := newLogger(cfg.Verbose, cmd.ErrOrStderr())
	defer func() { _ = logger.Sync() }()

	out := cmd.OutOrStdout()

	opts := []port.Option{
		port.WithProgress(out),
		port.WithMarker(cfg.Marker),
		port.WithLogger(logger),
		port.WithMaxConcurrency(cfg.MaxConcurrency),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, port.WithTimeout(cfg.Timeout))
	}
	// Caller-supplied options come last so they can replace the dialer.
	opts = append(opts, scanOpts...)

	logger.Debug("starting scan",
		zap.Stringer("target", target),
		zap.Int("workers", cfg.Threads),
		zap.Duration("timeout", cfg.Timeout),
	)

	ports, err := port.NewScanner(opts...).Scan(cmd.Context(), target, cfg.Threads)
	if err != nil {
		return model.WrapCLIError(model.ExitScanFailed, "scan failed", err)
	}

	result := model.ScanResult{Target: target, Workers: cfg.Threads, OpenPorts: ports}
	if cfg.JSON {
		// Keep the document on its own line after any progress markers.
		if cfg.Marker != "" && len(ports) > 0 {
			if _, err := fmt.Fprintln(out); err != nil {
				return model.WrapCLIError(model.ExitScanFailed, "failed to write results", err)
			}
		}
		return printScanJSON(out, result)
	}
	return printScanText(out, result)
}

// printScanText ends the progress line and prints one "<port> is open" line
// per open port, in ascending order.
func printScanText(w io.Writer, result model.ScanResult) error {
	if _, err := fmt.Fprintln(w); err != nil {
		return model.WrapCLIError(model.ExitScanFailed, "failed to write results", err)
	}
	for _, p := range result.OpenPorts {
		if _, err := fmt.Fprintf(w, "%d is open\n", p); err != nil {
			return model.WrapCLIError(model.ExitScanFailed, "failed to write results", err)
		}
	}
	return nil
}

// printScanJSON prints the result as an indented JSON document.
func printScanJSON(w io.Writer, result model.ScanResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return model.WrapCLIError(model.ExitScanFailed, "failed to write results", err)
	}
	return nil
}
