package port

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var loopback = netip.MustParseAddr("127.0.0.1")

// fakeDialer accepts connections on a fixed set of ports and refuses the
// rest. It records how often every port was dialed so tests can check that
// the partition hands each port to exactly one worker.
type fakeDialer struct {
	open map[uint16]bool

	mu     sync.Mutex
	dialed map[uint16]int

	active atomic.Int32
	peak   atomic.Int32
}

func newFakeDialer(open ...uint16) *fakeDialer {
	d := &fakeDialer{open: make(map[uint16]bool), dialed: make(map[uint16]int)}
	for _, p := range open {
		d.open[p] = true
	}
	return d
}

func (d *fakeDialer) DialContext(_ context.Context, network, address string) (net.Conn, error) {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		peak := d.peak.Load()
		if n <= peak || d.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if network != "tcp" {
		return nil, errors.New("unexpected network " + network)
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.dialed[ap.Port()]++
	d.mu.Unlock()

	if !d.open[ap.Port()] {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("connection refused")}
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

// failingWriter rejects every write, standing in for a closed stdout.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// lockedBuffer is a bytes.Buffer safe for the concurrent writes a scan makes.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestScan_ReportsOpenPortsSorted checks the basic contract: every open port
// is reported once, in ascending order, with one progress marker each.
func TestScan_ReportsOpenPortsSorted(t *testing.T) {
	dialer := newFakeDialer(8080, 22, 65535, 1, 443)
	var progress lockedBuffer

	s := NewScanner(WithDialer(dialer), WithProgress(&progress))
	got, err := s.Scan(context.Background(), loopback, 4)

	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 22, 443, 8080, 65535}, got)
	assert.Equal(t, ".....", progress.String())
}

// TestScan_DialsEveryPortOnce verifies coverage and no-overlap through the
// whole engine, not just the candidate generator.
func TestScan_DialsEveryPortOnce(t *testing.T) {
	for _, n := range []int{1, 3, 4, 1000} {
		t.Run(strconv.Itoa(n), func(t *testing.T) {
			dialer := newFakeDialer()
			s := NewScanner(WithDialer(dialer), WithMarker(""))

			_, err := s.Scan(context.Background(), loopback, n)
			require.NoError(t, err)

			assert.Len(t, dialer.dialed, MaxPort)
			assert.Zero(t, dialer.dialed[0])
			for p, count := range dialer.dialed {
				if count != 1 {
					t.Fatalf("port %d dialed %d times", p, count)
				}
			}
		})
	}
}

// TestScan_NoOpenPorts verifies that a target refusing everything yields an
// empty result rather than an error.
func TestScan_NoOpenPorts(t *testing.T) {
	var progress lockedBuffer
	s := NewScanner(WithDialer(newFakeDialer()), WithProgress(&progress))

	got, err := s.Scan(context.Background(), loopback, 1)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, progress.String())
}

// TestScan_MaxWorkers runs one worker per port. Every worker dials at most
// one port and the scan still terminates.
func TestScan_MaxWorkers(t *testing.T) {
	dialer := newFakeDialer(1, 65535)
	s := NewScanner(WithDialer(dialer), WithMarker(""))

	got, err := s.Scan(context.Background(), loopback, MaxPort)

	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 65535}, got)
	assert.Len(t, dialer.dialed, MaxPort)
}

// TestScan_InvalidArguments checks the preconditions on the worker count
// and the target address.
func TestScan_InvalidArguments(t *testing.T) {
	s := NewScanner(WithDialer(newFakeDialer()))

	_, err := s.Scan(context.Background(), loopback, 0)
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = s.Scan(context.Background(), loopback, MaxPort+1)
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = s.Scan(context.Background(), netip.Addr{}, 4)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

// TestScan_ProgressWriteFailure verifies that a broken progress stream aborts
// the scan instead of being swallowed.
func TestScan_ProgressWriteFailure(t *testing.T) {
	s := NewScanner(WithDialer(newFakeDialer(80)), WithProgress(failingWriter{}))

	got, err := s.Scan(context.Background(), loopback, 4)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProgressWrite)
	assert.Contains(t, err.Error(), "port 80")
	assert.Nil(t, got)
}

// TestScan_EmptyMarkerSkipsProgress checks that an empty marker disables
// progress output, so even a failing writer is never touched.
func TestScan_EmptyMarkerSkipsProgress(t *testing.T) {
	s := NewScanner(
		WithDialer(newFakeDialer(80)),
		WithProgress(failingWriter{}),
		WithMarker(""),
	)

	got, err := s.Scan(context.Background(), loopback, 2)

	require.NoError(t, err)
	assert.Equal(t, []uint16{80}, got)
}

// TestScan_CustomMarker verifies the marker written per open port.
func TestScan_CustomMarker(t *testing.T) {
	var progress lockedBuffer
	s := NewScanner(WithDialer(newFakeDialer(22, 80)), WithProgress(&progress), WithMarker("+"))

	_, err := s.Scan(context.Background(), loopback, 2)

	require.NoError(t, err)
	assert.Equal(t, "++", progress.String())
}

// TestScan_MaxConcurrency verifies that the cap bounds concurrent dials
// without changing which ports are scanned.
func TestScan_MaxConcurrency(t *testing.T) {
	dialer := newFakeDialer(8080)
	s := NewScanner(WithDialer(dialer), WithMarker(""), WithMaxConcurrency(2))

	got, err := s.Scan(context.Background(), loopback, 16)

	require.NoError(t, err)
	assert.Equal(t, []uint16{8080}, got)
	assert.LessOrEqual(t, dialer.peak.Load(), int32(2))
	assert.Len(t, dialer.dialed, MaxPort)
}

// TestScan_CancelledContext verifies that a cancelled context stops the
// workers and is reported.
func TestScan_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(WithDialer(newFakeDialer(80)), WithMarker(""))
	_, err := s.Scan(ctx, loopback, 4)

	assert.ErrorIs(t, err, context.Canceled)
}

// TestScan_LogsWorkerLifecycle checks that each worker logs its summary and
// that refused connections are not logged per port.
func TestScan_LogsWorkerLifecycle(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewScanner(
		WithDialer(newFakeDialer(8080)),
		WithMarker(""),
		WithLogger(zap.New(core)),
	)

	_, err := s.Scan(context.Background(), loopback, 4)
	require.NoError(t, err)

	started := logs.FilterMessage("worker started").All()
	require.Len(t, started, 4)
	total := int64(0)
	for _, e := range started {
		total += e.ContextMap()["ports"].(int64)
	}
	assert.EqualValues(t, MaxPort, total)
	require.Len(t, logs.FilterMessage("worker finished").All(), 4)

	open := logs.FilterMessage("open port").All()
	require.Len(t, open, 1)
	fields := open[0].ContextMap()
	assert.EqualValues(t, 8080, fields["port"])
	assert.EqualValues(t, WorkerFor(8080, 4), fields["worker"])

	assert.Len(t, logs.FilterMessage("scan finished").All(), 1)
	assert.Less(t, logs.Len(), 16, "refused connections must not be logged")
}

// TestScan_LoopbackListener scans the real loopback interface with a single
// listener bound. Other services on the machine may also show up, so only
// the presence of the listener's port is asserted.
func TestScan_LoopbackListener(t *testing.T) {
	if testing.Short() {
		t.Skip("full loopback scan skipped in short mode")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	listening := uint16(tcpAddr.Port)

	var progress lockedBuffer
	s := NewScanner(WithProgress(&progress))
	got, err := s.Scan(context.Background(), loopback, 64)

	require.NoError(t, err)
	assert.Contains(t, got, listening)
	assert.Equal(t, len(got), strings.Count(progress.String(), DefaultMarker))
}

// TestNewScanner_TimeoutAppliesToDefaultDialer verifies that WithTimeout
// configures the default dialer and never replaces a custom one, whatever
// the option order.
func TestNewScanner_TimeoutAppliesToDefaultDialer(t *testing.T) {
	s := NewScanner(WithTimeout(750 * time.Millisecond))
	d, ok := s.dialer.(*net.Dialer)
	require.True(t, ok, "default dialer should be *net.Dialer, got %T", s.dialer)
	assert.Equal(t, 750*time.Millisecond, d.Timeout)

	d, ok = NewScanner().dialer.(*net.Dialer)
	require.True(t, ok)
	assert.Zero(t, d.Timeout)

	custom := newFakeDialer()
	assert.Same(t, custom, NewScanner(WithDialer(custom), WithTimeout(time.Second)).dialer)
	assert.Same(t, custom, NewScanner(WithTimeout(time.Second), WithDialer(custom)).dialer)
}
