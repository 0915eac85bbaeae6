// Package repeater fans raw inbound RDR bytes out to auxiliary TCP peers,
// without interpreting them. Each configured endpoint is an independent,
// best-effort byte pipe: slow or unreachable peers lose data rather than
// ever stall ingestion.
package repeater

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
	"go.uber.org/zap"
)

// reconnectBackoff is how long an endpoint waits after a failed or
// dropped connection before dialing its address again.
const reconnectBackoff = 2 * time.Second

// fifoCapacity is the repeater's per-endpoint bounded queue size: twice
// the ingest staging size, i.e. twice the largest possible RDR packet plus
// a 5-octet size prefix.
const fifoCapacity = 2 * (rdr.MaxPacketSize + rdr.SizePrefixLen)

// State names an Endpoint's connection lifecycle stage, surfaced only for
// logging/metrics — the goroutine-per-endpoint translation collapses the
// original NotInitialized/Connecting/Writing/Waiting state machine into a
// blocking dial loop, but callers observing an endpoint still see these
// phases.
type State int

const (
	StateNotInitialized State = iota
	StateConnecting
	StateWriting
	StateWaiting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateWriting:
		return "writing"
	case StateWaiting:
		return "waiting"
	default:
		return "not_initialized"
	}
}

// Endpoint is one configured repeater target: a hostname:port pair to
// dial, a bounded FIFO of pending bytes, and a background goroutine that
// keeps the connection alive.
type Endpoint struct {
	addr   string
	dialer net.Dialer
	logger *zap.Logger

	mu    sync.Mutex
	q     *fifo
	state State
}

// NewEndpoint builds an Endpoint targeting addr ("host:port"). Call Run in
// its own goroutine to start connecting; Append is safe to call any time,
// before or after Run starts, from any goroutine.
func NewEndpoint(addr string, logger *zap.Logger) *Endpoint {
	return &Endpoint{
		addr:   addr,
		logger: logger,
		q:      newFIFO(fifoCapacity),
		state:  StateNotInitialized,
	}
}

// Addr returns the endpoint's configured address, for logging.
func (e *Endpoint) Addr() string { return e.addr }

// State reports the endpoint's current connection phase.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Append queues chunk to be written to this endpoint's peer. It never
// blocks: if the queue is full, oldest data is compacted away or, failing
// that, the entire queue is dropped and the chunk rejected.
func (e *Endpoint) Append(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	dropped, purged := e.q.append(chunk)
	if !dropped {
		return
	}
	if purged {
		e.logger.Warn("repeater queue purged, dropping buffered bytes",
			zap.String("endpoint", e.addr))
	} else {
		e.logger.Warn("repeater chunk dropped, larger than queue capacity",
			zap.String("endpoint", e.addr), zap.Int("chunk_bytes", len(chunk)))
	}
}

// Run dials addr and keeps writing queued bytes to it until ctx is
// cancelled, reconnecting with reconnectBackoff between attempts. It
// never returns a value the caller need inspect; it returns only when ctx
// is done.
func (e *Endpoint) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		e.setState(StateConnecting)
		conn, err := e.dialer.DialContext(ctx, "tcp", e.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Debug("repeater dial failed, backing off",
				zap.String("endpoint", e.addr), zap.Error(err))
			e.setState(StateWaiting)
			e.waitBackoff(ctx)
			continue
		}

		e.setState(StateWriting)
		e.writeLoop(ctx, conn)
		conn.Close()
		e.setState(StateWaiting)
		e.waitBackoff(ctx)
	}
}

func (e *Endpoint) waitBackoff(ctx context.Context) {
	t := time.NewTimer(reconnectBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// writeLoop drains the FIFO onto conn until ctx is cancelled or a write
// fails, polling on a short interval since the FIFO is filled from a
// different goroutine with no blocking handoff.
func (e *Endpoint) writeLoop(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		err := e.q.drain(func(b []byte) (int, error) {
			conn.SetWriteDeadline(time.Now().Add(time.Second))
			return conn.Write(b)
		})
		e.mu.Unlock()

		if err != nil {
			e.logger.Debug("repeater write failed, reconnecting",
				zap.String("endpoint", e.addr), zap.Error(err))
			return
		}
	}
}

func (e *Endpoint) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Set fans inbound bytes out to every configured endpoint, in the order
// they were added. Append order within each endpoint matches the order
// Tee is called, matching the contract that bytes from one session reach
// every repeater peer in the exact order received.
type Set struct {
	endpoints []*Endpoint
}

// NewSet builds a Set from the given addresses.
func NewSet(addrs []string, logger *zap.Logger) *Set {
	s := &Set{}
	for _, a := range addrs {
		s.endpoints = append(s.endpoints, NewEndpoint(a, logger))
	}
	return s
}

// Run starts every endpoint's background connection loop; it returns once
// ctx is cancelled and all endpoints have stopped.
func (s *Set) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.endpoints {
		wg.Add(1)
		go func(e *Endpoint) {
			defer wg.Done()
			e.Run(ctx)
		}(e)
	}
	wg.Wait()
}

// Tee queues chunk to every endpoint in the set.
func (s *Set) Tee(chunk []byte) {
	for _, e := range s.endpoints {
		e.Append(chunk)
	}
}

// Endpoints exposes the underlying endpoints, for status reporting.
func (s *Set) Endpoints() []*Endpoint {
	return s.endpoints
}
