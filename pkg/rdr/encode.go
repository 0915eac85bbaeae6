package rdr

import "encoding/binary"

// fieldWriter accumulates RDR fields into a byte buffer; used by tests and by
// synthetic-stream tooling to build wire-format packets.
type fieldWriter struct {
	buf []byte
}

func (w *fieldWriter) prefix(typ uint8, size uint32) {
	var hdr [5]byte
	hdr[0] = typ
	binary.BigEndian.PutUint32(hdr[1:], size)
	w.buf = append(w.buf, hdr[:]...)
}

func (w *fieldWriter) int8(v int8) {
	w.prefix(TypeInt8, 1)
	w.buf = append(w.buf, byte(v))
}

func (w *fieldWriter) uint8(v uint8) {
	w.prefix(TypeUint8, 1)
	w.buf = append(w.buf, v)
}

func (w *fieldWriter) int16(v int16) {
	w.prefix(TypeInt16, 2)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *fieldWriter) uint16(v uint16) {
	w.prefix(TypeUint16, 2)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *fieldWriter) int32(v int32) {
	w.prefix(TypeInt32, 4)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *fieldWriter) uint32(v uint32) {
	w.prefix(TypeUint32, 4)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// ipv4 writes the four address octets unchanged, as a RDR_TYPE_UINT32 field,
// the inverse of FieldReader.IPv4's identity read.
func (w *fieldWriter) ipv4(ip [4]byte) {
	w.prefix(TypeUint32, 4)
	w.buf = append(w.buf, ip[:]...)
}

func (w *fieldWriter) str(s string) {
	w.prefix(TypeString, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// EncodeTransactionUsage builds a complete wire-format RDR packet (size
// prefix + header + 25 fields) for a TRANSACTION_USAGE_RDR record. It exists
// for tests and for synthetic-stream generators exercising the decoder; the
// production bridge never emits RDR packets itself.
func EncodeTransactionUsage(ppcNum, src, dst uint8, srcPort, dstPort uint16, fcID uint32, u TransactionUsage) []byte {
	var fw fieldWriter
	fw.str(u.SubscriberID)
	fw.int16(u.PackageID)
	fw.int32(u.ServiceID)
	fw.int16(u.ProtocolID)
	fw.uint32(u.GenerationReason)
	fw.ipv4(u.ServerIP)
	fw.uint16(u.ServerPort)
	fw.str(u.AccessString)
	fw.str(u.InfoString)
	fw.ipv4(u.ClientIP)
	fw.uint16(u.ClientPort)
	fw.int8(u.InitiatingSide)
	fw.uint32(u.ReportTime)
	fw.uint32(u.MillisecDuration)
	fw.int8(u.TimeFrame)
	fw.uint32(u.SessionUpstreamVolume)
	fw.uint32(u.SessionDownstreamVolume)
	fw.uint16(u.SubscriberCounterID)
	fw.uint16(u.GlobalCounterID)
	fw.uint16(u.PackageCounterID)
	fw.uint8(u.IPProtocol)
	fw.int32(u.ProtocolSignature)
	fw.int32(u.ZoneID)
	fw.int32(u.FlavorID)
	fw.uint8(u.FlowCloseMode)

	return encodePacket(ppcNum, src, dst, srcPort, dstPort, fcID, TagTransactionUsage, 25, fw.buf)
}

func encodePacket(ppcNum, src, dst uint8, srcPort, dstPort uint16, fcID, tag uint32, fieldCnt uint8, fields []byte) []byte {
	payloadSize := MinPayloadSize + len(fields)
	pkt := make([]byte, SizePrefixLen+payloadSize)

	pkt[0] = ppcNum
	digits := []byte{
		byte('0' + (payloadSize/1000)%10),
		byte('0' + (payloadSize/100)%10),
		byte('0' + (payloadSize/10)%10),
		byte('0' + payloadSize%10),
	}
	copy(pkt[1:5], digits)

	pkt[5] = src
	pkt[6] = dst
	binary.BigEndian.PutUint16(pkt[7:9], srcPort)
	binary.BigEndian.PutUint16(pkt[9:11], dstPort)
	binary.BigEndian.PutUint32(pkt[11:15], fcID)
	binary.BigEndian.PutUint32(pkt[15:19], tag)
	pkt[19] = fieldCnt
	copy(pkt[HeaderSize:], fields)
	return pkt
}
