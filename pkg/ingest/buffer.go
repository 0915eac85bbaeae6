// Package ingest slices RDR packets out of a per-connection byte stream and
// resynchronizes when the stream carries truncated frames or garbage.
package ingest

import (
	"fmt"

	"github.com/cisco-sce/rdr2netflow/pkg/rdr"
)

// Capacity is the staging buffer size: the largest possible RDR packet plus
// room for the 5-octet size prefix of a second, not-yet-arrived packet.
const Capacity = rdr.MaxPacketSize + rdr.SizePrefixLen

// Decoded is one successfully framed-and-parsed RDR record pulled out of the
// stream by a call to Buffer.Scan.
type Decoded struct {
	Record rdr.Record
}

// Buffer is a fixed-capacity staging area for one connection's inbound
// bytes. Bytes are appended as they arrive; Scan slices off complete RDR
// packets, reports decode failures, and compacts the buffer to keep a
// truncated trailing packet alive across reads.
type Buffer struct {
	data []byte
	// truncated1/truncated2 record the scan offset at which the framing
	// detector most recently reported "possibly a packet, need more
	// bytes". truncated1 is the earliest such offset since the buffer
	// was last compacted; truncated2 is the next one found after it.
	// Both -1 means "no truncation observed this scan".
	truncated1 int
	truncated2 int
}

// NewBuffer allocates a Buffer with Capacity octets of backing storage.
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, Capacity)}
}

// Room reports how many more octets can be appended before the buffer is
// full.
func (b *Buffer) Room() int {
	return cap(b.data) - len(b.data)
}

// Append copies chunk onto the tail of the buffer. The caller must ensure
// len(chunk) <= Room(); Append panics otherwise, since the reactor is
// expected to read at most Room() octets per readiness call.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) > b.Room() {
		panic("ingest: Append chunk exceeds buffer room")
	}
	b.data = append(b.data, chunk...)
}

// Scan walks the buffer from offset 0, emitting one Decoded per complete,
// successfully decoded RDR packet found, and reporting to onSkipped each
// packet whose framing looked valid but whose field decode failed (the
// caller typically just logs these; the scan treats them as a false
// framing match and advances one octet to keep resynchronizing).
//
// After the scan the buffer retains only the bytes starting at the
// earliest unresolved truncation marker, so a packet split across reads
// survives to the next Append.
func (b *Buffer) Scan(onDecoded func(Decoded), onSkipped func(reason string)) {
	b.truncated1, b.truncated2 = -1, -1

	p := 0
	for p < len(b.data) {
		n := rdr.Sniff(b.data[p:])
		switch {
		case n > 0:
			rec, err := rdr.Decode(b.data[p : p+n])
			if err != nil {
				if onSkipped != nil {
					onSkipped(fmt.Sprintf("decode failed at offset %d: %v", p, err))
				}
				p++
				continue
			}
			onDecoded(Decoded{Record: rec})
			b.truncated1, b.truncated2 = -1, -1
			p += n
		case n < 0:
			if b.truncated1 < 0 {
				b.truncated1 = p
			} else if b.truncated2 < 0 {
				b.truncated2 = p
			}
			p++
		default:
			p++
		}
	}

	b.resync(onSkipped)
}

// resync applies the post-scan compaction rule: keep bytes from the
// earliest unresolved truncation marker onward, forcing forward progress
// when the buffer is completely full and stuck at offset 0.
func (b *Buffer) resync(onSkipped func(reason string)) {
	if b.truncated1 < 0 {
		b.data = b.data[:0]
		return
	}

	mark := b.truncated1
	if mark == 0 && len(b.data) == cap(b.data) {
		if b.truncated2 >= 0 {
			mark = b.truncated2
		} else {
			if onSkipped != nil {
				onSkipped(fmt.Sprintf("skipped %d garbage bytes", len(b.data)))
			}
			b.data = b.data[:0]
			return
		}
	}

	if mark > 0 {
		n := copy(b.data, b.data[mark:])
		b.data = b.data[:n]
	}
}
