package netflow5

import (
	"fmt"

	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
)

// Batch accumulates NetFlow v5 records for one session, mirroring the
// reference builder's per-session state: a running first/last observed
// timestamp, a flow sequence counter, and up to MaxRecords pending records.
type Batch struct {
	firstPacketTS uint32
	lastPacketTS  uint32
	flowSeq       uint32
	records       []Record
	diagnostics   func(string)
}

// NewBatch returns an empty Batch. diag, if non-nil, receives one-line
// diagnostics for a clock reversal; clamping the uptime is silent. diag
// may be nil to discard them.
func NewBatch(diag func(string)) *Batch {
	return &Batch{diagnostics: diag}
}

func (b *Batch) diag(format string, args ...any) {
	if b.diagnostics != nil {
		b.diagnostics(fmt.Sprintf(format, args...))
	}
}

// Pending reports how many records are currently buffered.
func (b *Batch) Pending() int {
	return len(b.records)
}

// Add normalizes one decoded transaction-usage record into an upstream and
// a downstream NetFlow v5 record, appending both. If appending both would
// exceed MaxRecords, the batch is flushed first (flushed is non-nil in
// that case, carrying the completed datagram). The caller is responsible
// for sending flushed over UDP.
func (b *Batch) Add(u rdr.TransactionUsage) (flushed []byte) {
	if len(b.records)+2 > MaxRecords {
		flushed = b.Flush()
	}

	durationS := ceilDiv(u.MillisecDuration, 1000)
	if u.ReportTime < durationS {
		durationS = 0
	}
	start := u.ReportTime - durationS

	if u.ReportTime < b.firstPacketTS {
		b.diag("clock reversal: report_time %d precedes first_packet_ts %d, resetting baseline", u.ReportTime, b.firstPacketTS)
	}
	if b.firstPacketTS == 0 || start < b.firstPacketTS {
		b.firstPacketTS = start
	}
	b.lastPacketTS = u.ReportTime

	sysUptimeMs := clampedUptime(b.lastPacketTS, b.firstPacketTS, u.MillisecDuration)

	last := sysUptimeMs
	first := uint32(0)
	if sysUptimeMs >= u.MillisecDuration {
		first = sysUptimeMs - u.MillisecDuration
	}

	clientSrc, clientDst := u.ClientIP, u.ServerIP
	clientSrcPort, clientDstPort := u.ClientPort, u.ServerPort
	if u.InitiatingSide != 0 {
		clientSrc, clientDst = clientDst, clientSrc
		clientSrcPort, clientDstPort = clientDstPort, clientSrcPort
	}

	b.flowSeq++
	upstream := Record{
		SrcAddr: clientSrc,
		DstAddr: clientDst,
		SrcPort: clientSrcPort,
		DstPort: clientDstPort,
		DOctets: u.SessionUpstreamVolume,
		DPkts:   0,
		First:   first,
		Last:    last,
		Prot:    u.IPProtocol,
		SrcMask: 32,
		DstMask: 32,
	}
	b.records = append(b.records, upstream)

	b.flowSeq++
	downstream := Record{
		SrcAddr: clientDst,
		DstAddr: clientSrc,
		SrcPort: clientDstPort,
		DstPort: clientSrcPort,
		DOctets: u.SessionDownstreamVolume,
		DPkts:   0,
		First:   first,
		Last:    last,
		Prot:    u.IPProtocol,
		SrcMask: 32,
		DstMask: 32,
	}
	b.records = append(b.records, downstream)

	return flushed
}

// Flush encodes the pending records into one NetFlow v5 datagram and
// resets the pending count (timestamps and the sequence counter survive
// a flush). Returns nil if there is nothing pending.
func (b *Batch) Flush() []byte {
	if len(b.records) == 0 {
		return nil
	}

	sysUptimeMs := clampedUptime(b.lastPacketTS, b.firstPacketTS, 0)
	hdr := Header{
		Version:      5,
		Count:        uint16(len(b.records)),
		SysUptime:    sysUptimeMs,
		UnixSecs:     b.lastPacketTS,
		UnixNsecs:    0,
		FlowSequence: b.flowSeq,
		EngineType:   0,
		EngineID:     0,
	}

	out := make([]byte, HeaderSize+len(b.records)*RecordSize)
	hdr.encode(out[:HeaderSize])
	for i, r := range b.records {
		r.encode(out[HeaderSize+i*RecordSize : HeaderSize+(i+1)*RecordSize])
	}

	b.records = b.records[:0]
	return out
}

func ceilDiv(ms uint32, unit uint32) uint32 {
	return (ms + unit - 1) / unit
}

// clampedUptime computes sys_uptime_ms = 1000*(last-first) + 1, clamped to
// never fall below millisecDuration so first = sys_uptime_ms - duration
// never underflows even if a caller feeds an inconsistent duration (the
// Open Question this resolves: clamp instead of asserting).
func clampedUptime(last, first, millisecDuration uint32) uint32 {
	var elapsed uint32
	if last >= first {
		elapsed = last - first
	}
	uptime := elapsed*1000 + 1
	if uptime < millisecDuration {
		uptime = millisecDuration
	}
	return uptime
}
