// Package cli — container.go implements the "ip-sniffer container" command.
//
// The command resolves a running Docker container to one of its network
// addresses and scans that address exactly like the root command would.
// All global flags (-j, --json, --timeout, ...) apply.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/ip-sniffer/internal/docker"
	"github.com/mmr-tortoise/ip-sniffer/internal/port"
)

// containerFlags holds the flag values for the container command.
type containerFlags struct {
	// network selects which attached network's address is scanned.
	// Empty means the "ip-sniffer.network" label, the config file, or the
	// first network with an address, in that order.
	network string
}

// newContainerCommand creates the "container" subcommand. It shares the
// root command's global flags.
func newContainerCommand(global *globalFlags, scanOpts ...port.Option) *cobra.Command {
	flags := &containerFlags{}

	cmd := &cobra.Command{
		Use:   "container [flags] <name-or-id>",
		Short: "Scan a running Docker container",
		Long: `Resolve a running Docker container to its IP address and scan it.

When the container is attached to several networks, the address is taken
from the network given with --network, then from the container's
"ip-sniffer.network" label, then from the first network (in name order)
that has an IPv4 address.

Examples:
  ip-sniffer container my-postgres
  ip-sniffer container --network backend -j 64 api-1`,

		Args: exactOneArg("<name-or-id>"),

		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveSettings(cmd, global)
			if err != nil {
				return err
			}
			network := cfg.Network
			if cmd.Flags().Changed("network") {
				network = flags.network
			}

			cli, err := docker.NewClient()
			if err != nil {
				return err // already a CLIError with ExitDockerNotRunning
			}
			defer func() { _ = cli.Close() }()

			if err := cli.Ping(cmd.Context()); err != nil {
				return err
			}

			target, err := docker.ResolveContainerAddress(cmd.Context(), cli, args[0], network)
			if err != nil {
				return err
			}
			return runScan(cmd, cfg, target, scanOpts...)
		},
	}

	cmd.Flags().StringVar(&flags.network, "network", "",
		"Docker network whose address is scanned (default: label, then first network)")

	return cmd
}
