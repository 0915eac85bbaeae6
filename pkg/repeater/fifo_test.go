package repeater

import (
	"bytes"
	"errors"
	"testing"
)

func TestFIFOAppendAndDrain(t *testing.T) {
	f := newFIFO(16)
	if dropped, _ := f.append([]byte("hello")); dropped {
		t.Fatal("unexpected drop")
	}

	var got []byte
	err := f.drain(func(b []byte) (int, error) {
		got = append(got, b...)
		return len(b), nil
	})
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q, want %q", got, "hello")
	}
	if f.len() != 0 {
		t.Fatalf("len() = %d, want 0 after full drain", f.len())
	}
}

func TestFIFOOversizedChunkDropped(t *testing.T) {
	f := newFIFO(4)
	dropped, purged := f.append([]byte("toolong"))
	if !dropped || purged {
		t.Fatalf("dropped=%v purged=%v, want dropped=true purged=false", dropped, purged)
	}
}

func TestFIFOCompactsBeforePurging(t *testing.T) {
	f := newFIFO(10)
	f.append([]byte("12345"))
	// drain three bytes only, leaving optr > 0 with room only at the front.
	drained := 0
	f.drain(func(b []byte) (int, error) {
		if drained > 0 {
			return 0, nil
		}
		drained = 3
		return 3, nil
	})
	if f.optr != 3 {
		t.Fatalf("optr = %d, want 3", f.optr)
	}
	dropped, purged := f.append([]byte("abcdefg")) // 7 bytes; needs compaction, not purge
	if dropped {
		t.Fatalf("expected compaction to make room, got dropped=%v purged=%v", dropped, purged)
	}
	if f.optr != 0 {
		t.Fatalf("optr = %d, want 0 after compaction", f.optr)
	}
}

func TestFIFOPurgesWhenCompactionInsufficient(t *testing.T) {
	f := newFIFO(10)
	f.append([]byte("1234567890"))
	dropped, purged := f.append([]byte("x"))
	if !dropped || !purged {
		t.Fatalf("dropped=%v purged=%v, want both true", dropped, purged)
	}
	if f.len() != 0 {
		t.Fatalf("len() = %d, want 0 after purge", f.len())
	}
}

func TestFIFODrainStopsOnError(t *testing.T) {
	f := newFIFO(16)
	f.append([]byte("abc"))
	wantErr := errors.New("write failed")
	err := f.drain(func(b []byte) (int, error) { return 0, wantErr })
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
