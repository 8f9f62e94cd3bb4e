// container.go resolves a running container to the address that gets
// scanned. Only inspection is needed; ip-sniffer never starts, stops or
// modifies containers.
package docker

import (
	"context"
	"fmt"
	"net/netip"
	"slices"

	cerrdefs "github.com/containerd/errdefs"

	// container provides InspectResponse, the result of ContainerInspect.
	"github.com/docker/docker/api/types/container"

	// network provides EndpointSettings, one entry per attached network.
	"github.com/docker/docker/api/types/network"

	"github.com/mmr-tortoise/ip-sniffer/internal/model"
)

// Inspector is the part of the Docker API that target resolution uses.
// *Client satisfies it; tests provide a fake.
type Inspector interface {
	ContainerInspect(ctx context.Context, nameOrID string) (container.InspectResponse, error)
}

// ResolveContainerAddress inspects the container nameOrID and returns the
// address to scan.
//
// The network is chosen in this order:
//  1. the netName argument, when non-empty
//  2. the container's "ip-sniffer.network" label
//  3. otherwise the first network, in name order, with an IPv4 address,
//     then the first with a global IPv6 address
//
// A missing container, a stopped container, or one without a usable
// address returns a model.CLIError with ExitContainerNotFound. Any other
// API failure returns ExitDockerNotRunning.
func ResolveContainerAddress(ctx context.Context, insp Inspector, nameOrID, netName string) (netip.Addr, error) {
	info, err := insp.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return netip.Addr{}, model.WrapCLIError(model.ExitContainerNotFound,
				fmt.Sprintf("container %q not found", nameOrID), err)
		}
		return netip.Addr{}, model.WrapCLIError(model.ExitDockerNotRunning,
			fmt.Sprintf("failed to inspect container %q", nameOrID), err)
	}

	// InspectResponse embeds *ContainerJSONBase, so State is only safe to
	// read once the embedded pointer is known to be set.
	if info.ContainerJSONBase == nil || info.State == nil || !info.State.Running {
		return netip.Addr{}, model.NewCLIError(model.ExitContainerNotFound,
			fmt.Sprintf("container %q is not running", nameOrID))
	}

	var labels map[string]string
	if info.Config != nil {
		labels = info.Config.Labels
	}
	var networks map[string]*network.EndpointSettings
	if info.NetworkSettings != nil {
		networks = info.NetworkSettings.Networks
	}

	addr, err := selectAddress(networks, preferredNetwork(netName, labels))
	if err != nil {
		return netip.Addr{}, model.WrapCLIError(model.ExitContainerNotFound,
			fmt.Sprintf("container %q has no address to scan", nameOrID), err)
	}
	return addr, nil
}

// selectAddress picks the scan address from a container's network
// endpoints. With a preferred network only that network is considered.
func selectAddress(networks map[string]*network.EndpointSettings, preferred string) (netip.Addr, error) {
	if preferred != "" {
		ep, ok := networks[preferred]
		if !ok || ep == nil {
			return netip.Addr{}, fmt.Errorf("not attached to network %q", preferred)
		}
		if addr, ok := endpointIPv4(ep); ok {
			return addr, nil
		}
		if addr, ok := endpointIPv6(ep); ok {
			return addr, nil
		}
		return netip.Addr{}, fmt.Errorf("network %q has no address assigned", preferred)
	}

	// Map iteration order is random; sort so the same container always
	// resolves to the same address.
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if addr, ok := endpointIPv4(networks[name]); ok {
			return addr, nil
		}
	}
	for _, name := range names {
		if addr, ok := endpointIPv6(networks[name]); ok {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("no IPv4 or global IPv6 address on %d network(s)", len(names))
}

func endpointIPv4(ep *network.EndpointSettings) (netip.Addr, bool) {
	if ep == nil || ep.IPAddress == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(ep.IPAddress)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}

func endpointIPv6(ep *network.EndpointSettings) (netip.Addr, bool) {
	if ep == nil || ep.GlobalIPv6Address == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(ep.GlobalIPv6Address)
	if err != nil || !addr.Is6() {
		return netip.Addr{}, false
	}
	return addr, true
}
