// Package bridge wires the RDR listener, NetFlow builder, IP filter, and
// repeater fan-out together. The reference design is a single-threaded
// select() reactor; this translation runs one goroutine per accepted
// connection doing blocking reads, and a single mutator goroutine that
// owns all per-session NetFlow state and the filter, reached only through
// a channel — so the observable ordering and flush-timing contracts the
// reactor promised are preserved without any lock around that state.
package bridge

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/cisco-sce/rdr2netflow/pkg/archive"
	"github.com/cisco-sce/rdr2netflow/pkg/ingest"
	"github.com/cisco-sce/rdr2netflow/pkg/ipfilter"
	"github.com/cisco-sce/rdr2netflow/pkg/netflow5"
	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
	"github.com/cisco-sce/rdr2netflow/pkg/repeater"
)

// idleFlushInterval is the reactor's readiness-wait timeout: on every
// expiry every session's pending NetFlow batch is flushed regardless of
// whether it's full, bounding end-to-end record latency.
const idleFlushInterval = 3 * time.Second

type eventKind int

const (
	eventSessionStarted eventKind = iota
	eventRecordDecoded
	eventSessionEnded
)

type event struct {
	kind      eventKind
	sessionID uint64
	record    rdr.Record
}

// Bridge owns the listener, the collector UDP socket, the repeater set,
// and the filter, and runs the single mutator goroutine that applies
// decoded records to per-session NetFlow batches.
type Bridge struct {
	logger    *zap.Logger
	filter    ipfilter.List
	repeaters *repeater.Set
	archive   *archive.Batcher

	collector net.Conn
	events    chan event

	nextID uint64
}

// New builds a Bridge. collectorAddr is dialed once as a connected UDP
// socket, matching the reference's "connect() once, write from a single
// task" contract.
func New(logger *zap.Logger, collectorAddr string, filter ipfilter.List, repeaters *repeater.Set, arc *archive.Batcher) (*Bridge, error) {
	conn, err := net.Dial("udp", collectorAddr)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		logger:    logger,
		filter:    filter,
		repeaters: repeaters,
		archive:   arc,
		collector: conn,
		events:    make(chan event, 256),
	}, nil
}

// Run accepts connections on ln and drives the mutator loop until ctx is
// cancelled. It returns once the mutator loop has flushed every batch and
// the accept loop has exited; session goroutines are not waited for.
func (b *Bridge) Run(ctx context.Context, ln net.Listener) error {
	go b.repeaters.Run(ctx)
	if b.archive != nil {
		go b.archive.Run(ctx)
	}

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		b.acceptLoop(ctx, ln)
	}()

	b.mutate(ctx)
	<-acceptDone
	return b.collector.Close()
}

func (b *Bridge) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		b.nextID++
		s := &session{
			id:         b.nextID,
			conn:       conn,
			remoteAddr: conn.RemoteAddr().String(),
			buf:        ingest.NewBuffer(),
		}
		b.logger.Info("session accepted", zap.String("remote", s.remoteAddr))
		b.events <- event{kind: eventSessionStarted, sessionID: s.id}
		go s.ingestLoop(b)

		if ctx.Err() != nil {
			return
		}
	}
}

// mutate is the single goroutine allowed to read or write per-session
// NetFlow batches or the shared filter. All cross-goroutine communication
// into it happens over b.events, so no mutex is needed for this state.
func (b *Bridge) mutate(ctx context.Context) {
	batches := make(map[uint64]*netflow5.Batch)
	ticker := time.NewTicker(idleFlushInterval)
	defer ticker.Stop()

	flushSession := func(id uint64) {
		batch, ok := batches[id]
		if !ok {
			return
		}
		if dgram := batch.Flush(); dgram != nil {
			if _, err := b.collector.Write(dgram); err != nil {
				b.logger.Warn("collector send failed", zap.Error(err))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			for id := range batches {
				flushSession(id)
			}
			return

		case <-ticker.C:
			for id := range batches {
				flushSession(id)
			}

		case ev := <-b.events:
			switch ev.kind {
			case eventSessionStarted:
				batches[ev.sessionID] = netflow5.NewBatch(func(msg string) {
					b.logger.Info("netflow builder", zap.Uint64("session", ev.sessionID), zap.String("msg", msg))
				})

			case eventSessionEnded:
				flushSession(ev.sessionID)
				delete(batches, ev.sessionID)

			case eventRecordDecoded:
				b.handleRecord(batches, ev.sessionID, ev.record)
			}
		}
	}
}

func (b *Bridge) handleRecord(batches map[uint64]*netflow5.Batch, sessionID uint64, rec rdr.Record) {
	if rec.TransactionUsage == nil {
		return
	}
	u := *rec.TransactionUsage

	if !b.filter.Empty() {
		if mask := b.filter.Filtered(u.ClientIP, u.ServerIP); mask != 0 {
			return
		}
	}

	batch, ok := batches[sessionID]
	if !ok {
		return
	}
	if dgram := batch.Add(u); dgram != nil {
		if _, err := b.collector.Write(dgram); err != nil {
			b.logger.Warn("collector send failed", zap.Error(err))
		}
	}

	if b.archive != nil {
		b.archive.Add(context.Background(), archive.RecordFromUsage(u, time.Now()))
	}
}
