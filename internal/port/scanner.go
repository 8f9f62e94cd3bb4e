package port

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/ip-sniffer/internal/model"
)

// DefaultMarker is written to the progress writer once per open port.
const DefaultMarker = "."

var (
	// ErrInvalidWorkers is returned when the worker count is outside
	// [1, model.MaxWorkers].
	ErrInvalidWorkers = errors.New("invalid worker count")

	// ErrInvalidTarget is returned for the zero netip.Addr.
	ErrInvalidTarget = errors.New("invalid target address")

	// ErrProgressWrite wraps a failure to write the progress marker. It
	// aborts the scan: there is no point continuing once stdout is gone.
	ErrProgressWrite = errors.New("progress output failed")
)

// Dialer opens TCP connections. *net.Dialer satisfies it; tests substitute
// a fake so that no real network is needed.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Scanner runs a TCP-connect scan over the full port space of one target.
//
// Each worker owns the ports produced by Candidates and dials them in turn.
// A successful connect writes a progress marker and sends the port to the
// shared Collector intake right away; a failed connect is skipped without
// retry or logging.
type Scanner struct {
	dialer         Dialer
	timeout        time.Duration
	progress       io.Writer
	progressMu     sync.Mutex
	marker         []byte
	logger         *zap.Logger
	maxConcurrency int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithDialer replaces the connection dialer. A custom dialer manages its own
// timeout; WithTimeout does not apply to it.
func WithDialer(d Dialer) Option {
	return func(s *Scanner) { s.dialer = d }
}

// WithTimeout sets the connect timeout of the default dialer. Zero keeps the
// platform default.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.timeout = d }
}

// WithProgress sets where progress markers are written.
func WithProgress(w io.Writer) Option {
	return func(s *Scanner) { s.progress = w }
}

// WithMarker sets the progress marker. An empty marker disables progress
// output entirely.
func WithMarker(m string) Option {
	return func(s *Scanner) { s.marker = []byte(m) }
}

// WithLogger sets the logger used for worker lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxConcurrency caps how many workers run at the same time. Workers
// beyond the cap start as earlier ones finish; the port partition is the
// same either way. Zero or less means no cap.
func WithMaxConcurrency(n int) Option {
	return func(s *Scanner) { s.maxConcurrency = n }
}

// NewScanner creates a Scanner. Without options it dials with the platform
// default connect timeout and writes DefaultMarker to os.Stdout. Options may
// be given in any order.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		progress: os.Stdout,
		marker:   []byte(DefaultMarker),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{Timeout: s.timeout}
	}
	return s
}

// Scan splits the port space of target across numWorkers workers, runs them
// concurrently and returns every open port in ascending order.
//
// All workers report into one Collector. The intake is closed only after the
// last worker has returned, so no send can race with the close. If a worker
// fails (progress output broken, or ctx cancelled) the remaining workers stop
// at their next candidate and Scan returns the first error.
func (s *Scanner) Scan(ctx context.Context, target netip.Addr, numWorkers int) ([]uint16, error) {
	if !target.IsValid() {
		return nil, ErrInvalidTarget
	}
	if numWorkers < 1 || numWorkers > model.MaxWorkers {
		return nil, fmt.Errorf("%w: %d (valid: 1-%d)", ErrInvalidWorkers, numWorkers, model.MaxWorkers)
	}

	log := s.logger.With(zap.Stringer("target", target), zap.Int("workers", numWorkers))
	log.Debug("scan started", zap.Int("max_concurrency", s.maxConcurrency))
	start := time.Now()

	collector := NewCollector(numWorkers)
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	// Launching happens off the calling goroutine: with a concurrency cap
	// g.Go blocks, and Collect below must already be draining by then.
	done := make(chan error, 1)
	go func() {
		for id := 0; id < numWorkers; id++ {
			g.Go(func() error {
				return s.work(gctx, log, target, id, numWorkers, collector.Intake())
			})
		}
		err := g.Wait()
		collector.Close()
		done <- err
	}()

	ports, err := collector.Collect()
	if err != nil {
		return nil, err
	}
	if err := <-done; err != nil {
		log.Debug("scan aborted", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	log.Debug("scan finished",
		zap.Int("open", len(ports)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ports, nil
}

// work scans every candidate port of one worker.
func (s *Scanner) work(ctx context.Context, log *zap.Logger, target netip.Addr, id, numWorkers int, intake chan<- uint16) error {
	log = log.With(zap.Int("worker", id))
	log.Debug("worker started", zap.Int("ports", CandidateCount(id, numWorkers)))
	scanned, open := 0, 0

	for p := range Candidates(id, numWorkers) {
		if err := ctx.Err(); err != nil {
			return err
		}
		scanned++
		if !s.probe(ctx, target, p) {
			continue
		}
		open++
		log.Debug("open port", zap.Uint16("port", p))

		if err := s.mark(); err != nil {
			return fmt.Errorf("%w: worker %d, port %d: %w", ErrProgressWrite, id, p, err)
		}
		intake <- p
	}

	log.Debug("worker finished", zap.Int("scanned", scanned), zap.Int("open", open))
	return nil
}

// probe reports whether a TCP connection to target:p can be established.
// The connection is closed immediately; nothing is read or written.
func (s *Scanner) probe(ctx context.Context, target netip.Addr, p uint16) bool {
	conn, err := s.dialer.DialContext(ctx, "tcp", netip.AddrPortFrom(target, p).String())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// mark writes one progress marker. Writers such as os.Stdout are unbuffered,
// so a successful Write means the marker is already visible.
func (s *Scanner) mark() error {
	if len(s.marker) == 0 || s.progress == nil {
		return nil
	}
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	_, err := s.progress.Write(s.marker)
	return err
}
