package port

import (
	"iter"

	"github.com/mmr-tortoise/ip-sniffer/internal/model"
)

// MaxPort is the highest port a worker may scan.
const MaxPort = model.MaxPort

// Candidates returns the ports owned by worker workerID when the port space
// is split across numWorkers workers.
//
// The next candidate is computed in int, which is wider than the 16-bit port
// domain, and compared with MaxPort before it is narrowed to uint16. A
// candidate that would pass 65535 ends the sequence instead of wrapping back
// to a low port.
//
// An out-of-range workerID or numWorkers yields an empty sequence.
func Candidates(workerID, numWorkers int) iter.Seq[uint16] {
	return func(yield func(uint16) bool) {
		if numWorkers < 1 || workerID < 0 || workerID >= numWorkers {
			return
		}
		for p := workerID + 1; p <= MaxPort; p += numWorkers {
			if !yield(uint16(p)) {
				return
			}
		}
	}
}

// CandidateCount returns how many ports worker workerID owns.
func CandidateCount(workerID, numWorkers int) int {
	if numWorkers < 1 || workerID < 0 || workerID >= numWorkers {
		return 0
	}
	first := workerID + 1
	if first > MaxPort {
		return 0
	}
	return (MaxPort-first)/numWorkers + 1
}

// WorkerFor returns the worker that owns port p, or -1 if no worker does
// (port 0, or a non-positive worker count).
func WorkerFor(p uint16, numWorkers int) int {
	if p == 0 || numWorkers < 1 {
		return -1
	}
	return (int(p) - 1) % numWorkers
}
