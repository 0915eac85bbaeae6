package rdr

import (
	"encoding/binary"
	"fmt"
)

// fieldPrefixSize is the 5-octet type+size prefix preceding every field's data.
const fieldPrefixSize = 5

// ErrTruncated reports that a field could not be read because the packet's
// declared boundary was reached before a complete field prefix/payload did.
var ErrTruncated = fmt.Errorf("rdr: truncated field")

// TypeMismatchError reports that a field was read with the wrong requested
// type. Wanted is the type code the caller expected.
type TypeMismatchError struct {
	Wanted int
	Got    uint8
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("rdr: field type mismatch: wanted %d, got %d", e.Wanted, e.Got)
}

// FieldReader walks a packet's RDR field stream from a fixed starting cursor,
// never advancing past the packet's declared end.
type FieldReader struct {
	pkt    []byte
	cursor int
	end    int
}

// NewFieldReader builds a reader over pkt[start:end]. end must be <= len(pkt).
func NewFieldReader(pkt []byte, start, end int) *FieldReader {
	return &FieldReader{pkt: pkt, cursor: start, end: end}
}

// Cursor returns the reader's current byte offset into pkt.
func (r *FieldReader) Cursor() int { return r.cursor }

func (r *FieldReader) peekPrefix(wantType int) (size uint32, err error) {
	if r.cursor+fieldPrefixSize > r.end {
		return 0, ErrTruncated
	}
	gotType := r.pkt[r.cursor]
	if int(gotType) != wantType {
		return 0, &TypeMismatchError{Wanted: wantType, Got: gotType}
	}
	size = binary.BigEndian.Uint32(r.pkt[r.cursor+1 : r.cursor+5])
	return size, nil
}

func (r *FieldReader) readFixed(wantType int, wantSize uint32) ([]byte, error) {
	size, err := r.peekPrefix(wantType)
	if err != nil {
		return nil, err
	}
	if size != wantSize {
		return nil, ErrTruncated
	}
	if r.cursor+fieldPrefixSize+int(size) > r.end {
		return nil, ErrTruncated
	}
	data := r.pkt[r.cursor+fieldPrefixSize : r.cursor+fieldPrefixSize+int(size)]
	r.cursor += fieldPrefixSize + int(size)
	return data, nil
}

// Int8 reads a RDR_TYPE_INT8 field.
func (r *FieldReader) Int8() (int8, error) {
	b, err := r.readFixed(TypeInt8, 1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

// Uint8 reads a RDR_TYPE_UINT8 field.
func (r *FieldReader) Uint8() (uint8, error) {
	b, err := r.readFixed(TypeUint8, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Int16 reads a RDR_TYPE_INT16 field (big-endian on the wire).
func (r *FieldReader) Int16() (int16, error) {
	b, err := r.readFixed(TypeInt16, 2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

// Uint16 reads a RDR_TYPE_UINT16 field.
func (r *FieldReader) Uint16() (uint16, error) {
	b, err := r.readFixed(TypeUint16, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Int32 reads a RDR_TYPE_INT32 field.
func (r *FieldReader) Int32() (int32, error) {
	b, err := r.readFixed(TypeInt32, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Uint32 reads a RDR_TYPE_UINT32 field.
func (r *FieldReader) Uint32() (uint32, error) {
	b, err := r.readFixed(TypeUint32, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// IPv4 reads a RDR_TYPE_UINT32 field that carries an IPv4 address.
//
// On the wire the field is a plain network-order UINT32 (high octet first,
// same as any other UINT32 field). The reference decoder additionally runs
// the decoded integer back through a host-order conversion before storing
// it in a struct in_addr — applying ntohl() twice. On the little-endian
// hosts this protocol was always deployed on, the second conversion exactly
// undoes the byte-reversal the first one introduced when the result is
// viewed as raw address octets (the classic in_addr quirk): the four
// octets landing in the in_addr are bit-identical to the four octets as
// they appeared on the wire, in the same order. NetFlow then writes that
// in_addr out with no further conversion, so the net effect on the address
// octets this decoder must reproduce is the identity: return the field's
// four data octets unchanged, in wire order.
func (r *FieldReader) IPv4() ([4]byte, error) {
	var out [4]byte
	data, err := r.readFixed(TypeUint32, 4)
	if err != nil {
		return out, err
	}
	copy(out[:], data)
	return out, nil
}

// Time reads a RDR_TYPE_UINT32 epoch-seconds timestamp field.
func (r *FieldReader) Time() (uint32, error) {
	return r.Uint32()
}

// String reads a RDR_TYPE_STRING field into dst, truncating silently if the
// source is longer than len(dst)-1, and always NUL-terminating the last
// occupied octet of dst (even on truncation).
func (r *FieldReader) String(dst []byte) (int, error) {
	size, err := r.peekPrefix(TypeString)
	if err != nil {
		return 0, err
	}
	if r.cursor+fieldPrefixSize+int(size) > r.end {
		return 0, ErrTruncated
	}
	src := r.pkt[r.cursor+fieldPrefixSize : r.cursor+fieldPrefixSize+int(size)]
	n := copy(dst, src)
	if n >= len(dst) {
		n = len(dst) - 1
	}
	dst[n] = 0
	r.cursor += fieldPrefixSize + int(size)
	return n, nil
}
