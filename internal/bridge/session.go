package bridge

import (
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/cisco-sce/rdr2netflow/pkg/ingest"
)

// session is one accepted TCP connection from an SCE device: its raw
// socket, its own staging buffer, and the identity the mutator goroutine
// uses to look up its NetFlow batch.
type session struct {
	id         uint64
	conn       net.Conn
	remoteAddr string
	buf        *ingest.Buffer
}

// ingestLoop owns the session's socket exclusively: it reads until EOF or
// error, tees every chunk to the repeater set, and scans the staging
// buffer for complete RDR packets, submitting each decoded record to
// events. It never touches shared NetFlow or filter state directly — that
// is the mutator goroutine's job, reached only through the events channel,
// so no locking is needed for that state.
func (s *session) ingestLoop(b *Bridge) {
	defer func() {
		b.events <- event{kind: eventSessionEnded, sessionID: s.id}
		s.conn.Close()
	}()

	chunk := make([]byte, ingest.Capacity)
	for {
		room := s.buf.Room()
		if room == 0 {
			b.logger.Warn("session buffer full with no valid packet, dropping it entirely",
				zap.String("remote", s.remoteAddr))
			s.buf = ingest.NewBuffer()
			room = s.buf.Room()
		}

		n, err := s.conn.Read(chunk[:room])
		if n > 0 {
			data := chunk[:n]
			s.buf.Append(data)
			b.repeaters.Tee(data)
			s.buf.Scan(
				func(d ingest.Decoded) {
					b.events <- event{kind: eventRecordDecoded, sessionID: s.id, record: d.Record}
				},
				func(reason string) {
					b.logger.Debug("ingest resync", zap.String("remote", s.remoteAddr), zap.String("reason", reason))
				},
			)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				b.logger.Info("session closed", zap.String("remote", s.remoteAddr))
			} else {
				b.logger.Debug("session read error", zap.String("remote", s.remoteAddr), zap.Error(err))
			}
			return
		}
	}
}
