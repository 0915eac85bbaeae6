package netflow5

import (
	"testing"

	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
)

func sampleUsage(initiatingSide int8) rdr.TransactionUsage {
	return rdr.TransactionUsage{
		ClientIP:                [4]byte{10, 0, 0, 1},
		ClientPort:               1234,
		ServerIP:                 [4]byte{192, 168, 1, 1},
		ServerPort:               80,
		InitiatingSide:           initiatingSide,
		ReportTime:               1_000_000,
		MillisecDuration:         500,
		SessionUpstreamVolume:    100,
		SessionDownstreamVolume:  200,
		IPProtocol:               6,
	}
}

func TestAddHappyPath(t *testing.T) {
	b := NewBatch(nil)
	b.Add(sampleUsage(0))

	if got := b.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}
	up, down := b.records[0], b.records[1]

	if up.SrcAddr != [4]byte{10, 0, 0, 1} || up.DstAddr != [4]byte{192, 168, 1, 1} {
		t.Fatalf("upstream addrs = %v -> %v, want client -> server", up.SrcAddr, up.DstAddr)
	}
	if up.DOctets != 100 {
		t.Fatalf("upstream octets = %d, want 100", up.DOctets)
	}
	if down.SrcAddr != [4]byte{192, 168, 1, 1} || down.DstAddr != [4]byte{10, 0, 0, 1} {
		t.Fatalf("downstream addrs = %v -> %v, want server -> client", down.SrcAddr, down.DstAddr)
	}
	if down.DOctets != 200 {
		t.Fatalf("downstream octets = %d, want 200", down.DOctets)
	}
	if b.flowSeq != 2 {
		t.Fatalf("flowSeq = %d, want 2", b.flowSeq)
	}
	if up.Last != down.Last || up.First != down.First {
		t.Fatal("upstream/downstream first/last must match")
	}
	if up.Last-up.First != up.Last-down.First {
		t.Fatal("duration window mismatch")
	}
}

func TestAddDirectionSwap(t *testing.T) {
	b := NewBatch(nil)
	b.Add(sampleUsage(1))

	up := b.records[0]
	if up.SrcAddr != [4]byte{192, 168, 1, 1} || up.DstAddr != [4]byte{10, 0, 0, 1} {
		t.Fatalf("swapped upstream addrs = %v -> %v, want server -> client", up.SrcAddr, up.DstAddr)
	}
}

func TestFlushResetsPendingKeepsSequence(t *testing.T) {
	b := NewBatch(nil)
	b.Add(sampleUsage(0))
	seqBefore := b.flowSeq

	dgram := b.Flush()
	if dgram == nil {
		t.Fatal("expected a non-nil datagram")
	}
	if len(dgram) != HeaderSize+2*RecordSize {
		t.Fatalf("datagram length = %d, want %d", len(dgram), HeaderSize+2*RecordSize)
	}
	if b.Pending() != 0 {
		t.Fatal("Flush must reset pending count")
	}
	if b.flowSeq != seqBefore {
		t.Fatal("Flush must not reset the sequence counter")
	}

	if empty := b.Flush(); empty != nil {
		t.Fatal("Flush on an empty batch must return nil")
	}
}

func TestAddFlushesAutomaticallyAtCapacity(t *testing.T) {
	b := NewBatch(nil)
	for i := 0; i < 15; i++ {
		if flushed := b.Add(sampleUsage(0)); flushed != nil {
			t.Fatalf("unexpected auto-flush at record %d", i)
		}
	}
	if b.Pending() != MaxRecords {
		t.Fatalf("Pending() = %d, want %d", b.Pending(), MaxRecords)
	}

	flushed := b.Add(sampleUsage(0))
	if flushed == nil {
		t.Fatal("expected an auto-flush once the next pair would exceed MaxRecords")
	}
	if b.Pending() != 2 {
		t.Fatalf("Pending() after auto-flush = %d, want 2", b.Pending())
	}
}

func TestClockReversalResetsBaseline(t *testing.T) {
	var diags []string
	b := NewBatch(func(s string) { diags = append(diags, s) })

	first := sampleUsage(0)
	first.ReportTime = 1_000_000
	b.Add(first)
	firstBaseline := b.firstPacketTS

	reversed := sampleUsage(0)
	reversed.ReportTime = 999_000
	b.Add(reversed)

	if len(diags) == 0 {
		t.Fatal("expected a diagnostic for the clock reversal")
	}
	if b.firstPacketTS >= firstBaseline {
		t.Fatalf("first_packet_ts should reset to an earlier baseline: was %d, now %d", firstBaseline, b.firstPacketTS)
	}
	if b.lastPacketTS != 999_000 {
		t.Fatalf("last_packet_ts = %d, want 999000", b.lastPacketTS)
	}
}

func TestUptimeNeverBelowDuration(t *testing.T) {
	u := sampleUsage(0)
	u.MillisecDuration = 5000
	u.ReportTime = 10
	b := NewBatch(nil)
	b.Add(u)
	up := b.records[0]
	if up.Last < u.MillisecDuration {
		t.Fatalf("Last (%d) must not be below millisec_duration (%d)", up.Last, u.MillisecDuration)
	}
	if up.Last < up.First {
		t.Fatalf("Last (%d) must not be before First (%d)", up.Last, up.First)
	}
}
