// Package archive optionally persists decoded transaction-usage records to
// a Postgres-compatible database, batching inserts so it never applies
// backpressure to ingestion. The bridge uses it only when archiving is
// enabled in its configuration.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
)

// Record is one transaction-usage record queued for archival.
type Record struct {
	ObservedAt time.Time
	Subscriber string
	ClientIP   string
	ClientPort uint16
	ServerIP   string
	ServerPort uint16
	Upstream   uint32
	Downstream uint32
	Protocol   uint8
	ReportTime uint32
	DurationMs uint32
}

// RecordFromUsage converts a decoded transaction-usage record into an
// archive Record, formatting the addresses that rdr.FieldReader.IPv4
// leaves as raw wire octets into dotted-quad strings.
func RecordFromUsage(u rdr.TransactionUsage, observedAt time.Time) Record {
	return Record{
		ObservedAt: observedAt,
		Subscriber: u.SubscriberID,
		ClientIP:   dottedQuad(u.ClientIP),
		ClientPort: u.ClientPort,
		ServerIP:   dottedQuad(u.ServerIP),
		ServerPort: u.ServerPort,
		Upstream:   u.SessionUpstreamVolume,
		Downstream: u.SessionDownstreamVolume,
		Protocol:   u.IPProtocol,
		ReportTime: u.ReportTime,
		DurationMs: u.MillisecDuration,
	}
}

func dottedQuad(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// Sink accepts batches of Records for persistence. Implemented by Client;
// tests use a fake in its place.
type Sink interface {
	InsertRecords(ctx context.Context, records []Record) error
}

// Config configures the Postgres connection pool backing a Client.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	PoolSize int
}

// Client is the pgx-backed Sink implementation.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient opens a connection pool and verifies connectivity with a ping.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.PoolSize,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("archive: parse config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.PoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Close releases the connection pool.
func (c *Client) Close() {
	c.pool.Close()
}

var archiveColumns = []string{
	"observed_at", "subscriber_id", "client_ip", "client_port",
	"server_ip", "server_port", "upstream_octets", "downstream_octets",
	"protocol", "report_time", "duration_ms",
}

// InsertRecords bulk-inserts records via COPY, the same pattern the
// reference flow-record sink uses for high-throughput writes.
func (c *Client) InsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("archive: acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Conn().CopyFrom(
		ctx,
		pgx.Identifier{"transaction_usage_rdr"},
		archiveColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
			r := records[i]
			return []interface{}{
				r.ObservedAt, r.Subscriber, r.ClientIP, r.ClientPort,
				r.ServerIP, r.ServerPort, r.Upstream, r.Downstream,
				r.Protocol, r.ReportTime, r.DurationMs,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("archive: insert records: %w", err)
	}
	return nil
}

// Batcher accumulates Records and flushes them to a Sink on a timer or
// once a size threshold is reached, logging (rather than propagating)
// failures: archival must never block or fail flow processing.
type Batcher struct {
	sink          Sink
	logger        *zap.Logger
	flushSize     int
	flushInterval time.Duration

	mu      chan struct{} // 1-buffered mutex; see lock/unlock below
	pending []Record
}

// NewBatcher builds a Batcher that flushes whenever pending records reach
// flushSize or flushInterval elapses, whichever comes first.
func NewBatcher(sink Sink, logger *zap.Logger, flushSize int, flushInterval time.Duration) *Batcher {
	b := &Batcher{
		sink:          sink,
		logger:        logger,
		flushSize:     flushSize,
		flushInterval: flushInterval,
		mu:            make(chan struct{}, 1),
	}
	b.mu <- struct{}{}
	return b
}

func (b *Batcher) lock()   { <-b.mu }
func (b *Batcher) unlock() { b.mu <- struct{}{} }

// Add queues one record, flushing synchronously if the batch is now full.
func (b *Batcher) Add(ctx context.Context, r Record) {
	b.lock()
	b.pending = append(b.pending, r)
	full := len(b.pending) >= b.flushSize
	b.unlock()
	if full {
		b.Flush(ctx)
	}
}

// Flush sends any pending records to the sink now. Errors are logged, not
// returned: callers on the ingestion path must not be slowed by archival
// failures.
func (b *Batcher) Flush(ctx context.Context) {
	b.lock()
	batch := b.pending
	b.pending = nil
	b.unlock()

	if len(batch) == 0 {
		return
	}
	if err := b.sink.InsertRecords(ctx, batch); err != nil {
		b.logger.Warn("archive flush failed", zap.Int("records", len(batch)), zap.Error(err))
	}
}

// Run flushes on flushInterval until ctx is cancelled, performing a final
// flush before returning.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.Flush(context.Background())
			return
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}
