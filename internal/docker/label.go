package docker

import "strings"

// Label keys read from containers that are scanned by name.
//
// All keys share the "ip-sniffer." prefix to avoid collisions with labels
// set by other tools (Docker Compose, VS Code, etc.).
const (
	// LabelPrefix is the common prefix for all ip-sniffer labels.
	LabelPrefix = "ip-sniffer."

	// LabelNetwork names the network whose address should be scanned when
	// the container is attached to several. The --network flag wins over
	// this label.
	// Key: "ip-sniffer.network", Value: network name (e.g., "backend").
	LabelNetwork = LabelPrefix + "network"
)

// NetworkHint returns the network named by the LabelNetwork label, or ""
// when the label is absent or blank.
func NetworkHint(labels map[string]string) string {
	return strings.TrimSpace(labels[LabelNetwork])
}

// preferredNetwork picks the network to scan: an explicit choice first,
// then the container's own label.
func preferredNetwork(explicit string, labels map[string]string) string {
	if n := strings.TrimSpace(explicit); n != "" {
		return n
	}
	return NetworkHint(labels)
}
