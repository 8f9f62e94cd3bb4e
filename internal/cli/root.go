// Package cli implements the cobra-based CLI for ip-sniffer.
//
// The root command scans a literal IP address. The "container" subcommand
// resolves a Docker container to its address first and then runs the same
// scan. This file defines the root command, the global flags and the
// error-to-exit-code handling; scan.go holds the shared scan workflow.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ip-sniffer/internal/model"
	"github.com/mmr-tortoise/ip-sniffer/internal/port"
)

// jsonOutput controls whether errors are printed as JSON. The --json flag
// is bound to it directly, so argument errors raised before settings are
// resolved are already formatted correctly; a config file can only turn it
// on.
var jsonOutput bool

// Version, Commit and Date are set at build time via ldflags in the main
// package.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// globalFlags holds the persistent flags shared by every command.
// Flag values only take effect when the flag was given explicitly; otherwise
// the config file or the built-in default applies (see resolveSettings).
type globalFlags struct {
	threads        string
	verbose        bool
	configPath     string
	maxConcurrency int
	timeout        string
	marker         string
}

// NewRootCommand creates the root cobra command with all subcommands
// registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand()
}

// newRootCommand is NewRootCommand with extra scanner options, which tests
// use to substitute the dialer.
func newRootCommand(scanOpts ...port.Option) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "ip-sniffer [flags] <ipaddr>",
		Short: "Concurrent TCP-connect port scanner",
		Long: `ip-sniffer finds the TCP ports of a host that accept connections.

The port space 1-65535 is split across the requested number of workers:
worker i scans ports i+1, i+1+N, i+1+2N, ... so every port is tried exactly
once. A marker is printed as each open port is found, followed by the
sorted list of open ports.

Examples:
  ip-sniffer 192.168.1.1
  ip-sniffer -j 100 192.168.1.1
  ip-sniffer --json --timeout 500ms ::1
  ip-sniffer container my-postgres`,

		Args: exactOneArg("<ipaddr>"),

		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := model.ParseTarget(args[0])
			if err != nil {
				return err
			}
			cfg, err := resolveSettings(cmd, flags)
			if err != nil {
				return err
			}
			return runScan(cmd, cfg, target, scanOpts...)
		},

		// Errors are printed by Execute in text or JSON form.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// Flag parse errors (unknown flag, bad integer) are invocation errors.
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitInvalidArgs, "invalid flags", err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.threads, "threads", "j", "",
		fmt.Sprintf("Number of concurrent workers, 1-%d (default %d)", model.MaxWorkers, model.DefaultWorkers))
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging on stderr")
	pf.StringVar(&flags.configPath, "config", "", "Path to a YAML or JSONC config file")
	pf.IntVar(&flags.maxConcurrency, "max-concurrency", 0,
		"Run at most this many workers at once (0: all workers at once)")
	pf.StringVar(&flags.timeout, "timeout", "", "Connect timeout, e.g. 500ms (default: platform timeout)")
	pf.StringVar(&flags.marker, "marker", "", `Progress marker per open port, "" to disable (default ".")`)

	rootCmd.AddCommand(newContainerCommand(flags, scanOpts...))

	return rootCmd
}

// exactOneArg requires a single positional argument and reports violations
// as invocation errors rather than generic failures.
func exactOneArg(name string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		switch {
		case len(args) < 1:
			return model.NewCLIError(model.ExitInvalidArgs, "not enough arguments: missing "+name)
		case len(args) > 1:
			return model.NewCLIError(model.ExitInvalidArgs,
				fmt.Sprintf("too many arguments: expected only %s, got %d arguments", name, len(args)))
		}
		return nil
	}
}

// Execute runs the root command and exits the process with the code that
// matches the returned error. It is the only place that calls os.Exit.
func Execute(rootCmd *cobra.Command) {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	printError(os.Stderr, err)
	os.Exit(int(ExitCodeFor(err)))
}

// ExitCodeFor maps an error to a process exit code. CLIError values carry
// their own code, anywhere in the wrap chain; everything else is a general
// error.
func ExitCodeFor(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return model.ExitGeneralError
}

// printError writes err to w as "Error: ..." text or, with JSON output
// enabled, as {"error": {"message": ..., "detail": ...}}.
func printError(w io.Writer, err error) {
	message, detail := err.Error(), ""
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		message = cliErr.Message
		if cliErr.Err != nil {
			detail = cliErr.Err.Error()
		}
	}

	if jsonOutput {
		body := map[string]string{"message": message}
		if detail != "" {
			body["detail"] = detail
		}
		data, _ := json.MarshalIndent(map[string]any{"error": body}, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if detail != "" {
		_, _ = fmt.Fprintf(w, "Error: %s: %s\n", message, detail)
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %s\n", message)
}
