package port

import (
	"errors"
	"slices"
	"sync"
)

// ErrAlreadyCollected is returned by Collect when the result has already
// been handed out.
var ErrAlreadyCollected = errors.New("collector: result already collected")

// Collector gathers open ports reported by many concurrent workers and
// produces a single sorted result.
//
// Workers send on the channel returned by Intake. The owner of the Collector
// calls Close once every worker has returned, and Collect drains whatever
// is still buffered before sorting.
type Collector struct {
	intake    chan uint16
	closeOnce sync.Once

	mu        sync.Mutex
	collected bool
}

// NewCollector creates a Collector whose intake holds up to buffer pending
// ports. A zero buffer makes every send wait for the drain loop.
func NewCollector(buffer int) *Collector {
	if buffer < 0 {
		buffer = 0
	}
	return &Collector{intake: make(chan uint16, buffer)}
}

// Intake returns the send-only handle workers report open ports on.
// It is safe for concurrent use by any number of senders.
func (c *Collector) Intake() chan<- uint16 {
	return c.intake
}

// Close releases the intake. No sender may use the intake after Close;
// calling Close more than once is harmless.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.intake) })
}

// Collect blocks until the intake is closed and drained, then returns the
// received ports in ascending order. Ports are appended in arrival order,
// which depends on scan timing, so the sort is what makes the output
// deterministic.
//
// The result is handed out once. Later calls return ErrAlreadyCollected.
func (c *Collector) Collect() ([]uint16, error) {
	c.mu.Lock()
	if c.collected {
		c.mu.Unlock()
		return nil, ErrAlreadyCollected
	}
	c.collected = true
	c.mu.Unlock()

	ports := make([]uint16, 0)
	for p := range c.intake {
		ports = append(ports, p)
	}
	slices.Sort(ports)
	return ports, nil
}
