// Package docker resolves Docker containers to scan targets for the
// ip-sniffer CLI.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container inspection and address selection, including the
//     "ip-sniffer.network" label that lets a container name the network
//     it should be scanned on
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
