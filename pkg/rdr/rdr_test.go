package rdr

import "testing"

func TestSniffTooShort(t *testing.T) {
	if got := Sniff([]byte{1, 2, 3}); got != -1 {
		t.Fatalf("Sniff(3 bytes) = %d, want -1", got)
	}
}

func TestSniffNotDigits(t *testing.T) {
	data := []byte{0x01, 'x', '0', '0', '0', 0, 0, 0, 0, 0}
	if got := Sniff(data); got != 0 {
		t.Fatalf("Sniff(non-digit size) = %d, want 0", got)
	}
}

func TestSniffPayloadTooSmall(t *testing.T) {
	// payload_size = 14, below MinPayloadSize (15)
	data := []byte("x0014" + string(make([]byte, 14)))
	if got := Sniff(data); got != 0 {
		t.Fatalf("Sniff(payload<15) = %d, want 0", got)
	}
}

func TestSniffTruncated(t *testing.T) {
	// payload_size = 20 but buffer only has 10 bytes total
	data := []byte("x0020" + string(make([]byte, 5)))
	if got := Sniff(data); got >= 0 {
		t.Fatalf("Sniff(truncated) = %d, want <0", got)
	}
}

func TestSniffValid(t *testing.T) {
	u := TransactionUsage{
		SubscriberID:            "alice",
		ServerIP:                [4]byte{192, 168, 1, 1},
		ServerPort:               80,
		ClientIP:                [4]byte{10, 0, 0, 1},
		ClientPort:               1234,
		InitiatingSide:           0,
		ReportTime:               1_000_000,
		MillisecDuration:         500,
		SessionUpstreamVolume:    100,
		SessionDownstreamVolume:  200,
		IPProtocol:               6,
	}
	pkt := EncodeTransactionUsage(1, 0, 0, 0, 0, 0, u)
	got := Sniff(pkt)
	if got != len(pkt) {
		t.Fatalf("Sniff(valid packet) = %d, want %d", got, len(pkt))
	}
}

func TestSniffIdempotent(t *testing.T) {
	u := TransactionUsage{SubscriberID: "bob", IPProtocol: 17}
	pkt := EncodeTransactionUsage(1, 0, 0, 0, 0, 0, u)
	first := Sniff(pkt)
	second := Sniff(pkt)
	if first != second {
		t.Fatalf("Sniff not idempotent: %d != %d", first, second)
	}
}

func TestDecodeTransactionUsageRoundTrip(t *testing.T) {
	want := TransactionUsage{
		SubscriberID:            "subscriber-42",
		PackageID:               7,
		ServiceID:               1234,
		ProtocolID:              1,
		GenerationReason:        3,
		ServerIP:                [4]byte{192, 168, 1, 1},
		ServerPort:              80,
		AccessString:            "/index.html",
		InfoString:              "info",
		ClientIP:                [4]byte{10, 0, 0, 1},
		ClientPort:              1234,
		InitiatingSide:          0,
		ReportTime:              1_000_000,
		MillisecDuration:        500,
		TimeFrame:               1,
		SessionUpstreamVolume:   100,
		SessionDownstreamVolume: 200,
		SubscriberCounterID:     1,
		GlobalCounterID:         2,
		PackageCounterID:        3,
		IPProtocol:              6,
		ProtocolSignature:       9,
		ZoneID:                  10,
		FlavorID:                11,
		FlowCloseMode:           1,
	}
	pkt := EncodeTransactionUsage(5, 1, 2, 100, 200, 42, want)

	n := Sniff(pkt)
	if n != len(pkt) {
		t.Fatalf("Sniff = %d, want %d", n, len(pkt))
	}

	rec, err := Decode(pkt[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Header.Tag != TagTransactionUsage {
		t.Fatalf("Tag = %#x, want %#x", rec.Header.Tag, TagTransactionUsage)
	}
	if rec.TransactionUsage == nil {
		t.Fatal("TransactionUsage is nil")
	}
	got := *rec.TransactionUsage
	if got != want {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestDecodeStringTruncation(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	u := TransactionUsage{SubscriberID: string(long), IPProtocol: 6}
	pkt := EncodeTransactionUsage(1, 0, 0, 0, 0, 0, u)
	n := Sniff(pkt)
	rec, err := Decode(pkt[:n])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(rec.TransactionUsage.SubscriberID) != maxSubscriberID-1 {
		t.Fatalf("SubscriberID len = %d, want %d", len(rec.TransactionUsage.SubscriberID), maxSubscriberID-1)
	}
}

func TestDecodeUnrecognizedTagYieldsHeaderOnly(t *testing.T) {
	pkt := encodePacket(1, 0, 0, 0, 0, 0, 0xdeadbeef, 0, nil)
	rec, err := Decode(pkt)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rec.Transaction != nil || rec.TransactionUsage != nil {
		t.Fatal("expected no typed payload for unrecognized tag")
	}
}

func TestDecodeRejectsShortFieldCount(t *testing.T) {
	pkt := encodePacket(1, 0, 0, 0, 0, 0, TagTransactionUsage, 24, nil)
	if _, err := Decode(pkt); err == nil {
		t.Fatal("expected error for field_cnt < 25")
	}
}
