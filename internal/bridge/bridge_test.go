package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cisco-sce/rdr2netflow/pkg/ipfilter"
	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
	"github.com/cisco-sce/rdr2netflow/pkg/repeater"
)

func startCollector(t *testing.T) (addr string, packets chan []byte) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	packets = make(chan []byte, 8)
	go func() {
		buf := make([]byte, 2048)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			out := make([]byte, n)
			copy(out, buf[:n])
			packets <- out
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return conn.LocalAddr().String(), packets
}

func TestBridgeEndToEndHappyPath(t *testing.T) {
	collectorAddr, packets := startCollector(t)
	logger := zap.NewNop()

	filter, _ := ipfilter.ParseList("")
	repeaters := repeater.NewSet(nil, logger)
	b, err := New(logger, collectorAddr, filter, repeaters, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		b.Run(ctx, ln)
		close(runDone)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	u := rdr.TransactionUsage{
		ClientIP:                [4]byte{10, 0, 0, 1},
		ClientPort:              1234,
		ServerIP:                [4]byte{192, 168, 1, 1},
		ServerPort:              80,
		InitiatingSide:          0,
		ReportTime:              1_000_000,
		MillisecDuration:        500,
		SessionUpstreamVolume:   100,
		SessionDownstreamVolume: 200,
		IPProtocol:              6,
	}
	pkt := rdr.EncodeTransactionUsage(1, 0, 0, 0, 0, 1, u)
	if _, err := conn.Write(pkt); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case got := <-packets:
		if len(got) < 24+48 {
			t.Fatalf("datagram too short: %d bytes", len(got))
		}
		if got[0] != 0 || got[1] != 5 {
			t.Fatalf("unexpected version field: %v", got[0:2])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a NetFlow datagram")
	}

	conn.Close()
	cancel()
	ln.Close()

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBridgeFiltersDroppedRecords(t *testing.T) {
	collectorAddr, packets := startCollector(t)
	logger := zap.NewNop()

	filter, err := ipfilter.ParseList("10.0.0.0/8")
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	repeaters := repeater.NewSet(nil, logger)
	b, err := New(logger, collectorAddr, filter, repeaters, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	u := rdr.TransactionUsage{
		ClientIP:         [4]byte{10, 0, 0, 1},
		ServerIP:         [4]byte{192, 168, 1, 1},
		ReportTime:       1_000_000,
		MillisecDuration: 500,
		IPProtocol:       6,
	}
	pkt := rdr.EncodeTransactionUsage(1, 0, 0, 0, 0, 1, u)
	conn.Write(pkt)

	select {
	case got := <-packets:
		t.Fatalf("expected no datagram for a filtered record, got %d bytes", len(got))
	case <-time.After(500 * time.Millisecond):
	}
}
