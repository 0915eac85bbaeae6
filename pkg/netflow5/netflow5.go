// Package netflow5 builds NetFlow v5 export datagrams: a 24-byte header
// followed by up to 30 48-byte flow records.
package netflow5

import "encoding/binary"

const (
	// HeaderSize is the size, in octets, of a NetFlow v5 datagram header.
	HeaderSize = 24
	// RecordSize is the size, in octets, of one NetFlow v5 flow record.
	RecordSize = 48
	// MaxRecords is the largest record count a single datagram carries.
	MaxRecords = 30
)

// Header is a NetFlow v5 datagram header.
type Header struct {
	Version          uint16
	Count            uint16
	SysUptime        uint32
	UnixSecs         uint32
	UnixNsecs        uint32
	FlowSequence     uint32
	EngineType       uint8
	EngineID         uint8
	SamplingInterval uint16
}

// Record is a single NetFlow v5 flow record.
type Record struct {
	SrcAddr  [4]byte
	DstAddr  [4]byte
	NextHop  [4]byte
	Input    uint16
	Output   uint16
	DPkts    uint32
	DOctets  uint32
	First    uint32
	Last     uint32
	SrcPort  uint16
	DstPort  uint16
	Pad1     uint8
	TCPFlags uint8
	Prot     uint8
	Tos      uint8
	SrcAS    uint16
	DstAS    uint16
	SrcMask  uint8
	DstMask  uint8
	Pad2     uint16
}

func (h Header) encode(dst []byte) {
	binary.BigEndian.PutUint16(dst[0:2], h.Version)
	binary.BigEndian.PutUint16(dst[2:4], h.Count)
	binary.BigEndian.PutUint32(dst[4:8], h.SysUptime)
	binary.BigEndian.PutUint32(dst[8:12], h.UnixSecs)
	binary.BigEndian.PutUint32(dst[12:16], h.UnixNsecs)
	binary.BigEndian.PutUint32(dst[16:20], h.FlowSequence)
	dst[20] = h.EngineType
	dst[21] = h.EngineID
	binary.BigEndian.PutUint16(dst[22:24], h.SamplingInterval)
}

func (r Record) encode(dst []byte) {
	copy(dst[0:4], r.SrcAddr[:])
	copy(dst[4:8], r.DstAddr[:])
	copy(dst[8:12], r.NextHop[:])
	binary.BigEndian.PutUint16(dst[12:14], r.Input)
	binary.BigEndian.PutUint16(dst[14:16], r.Output)
	binary.BigEndian.PutUint32(dst[16:20], r.DPkts)
	binary.BigEndian.PutUint32(dst[20:24], r.DOctets)
	binary.BigEndian.PutUint32(dst[24:28], r.First)
	binary.BigEndian.PutUint32(dst[28:32], r.Last)
	binary.BigEndian.PutUint16(dst[32:34], r.SrcPort)
	binary.BigEndian.PutUint16(dst[34:36], r.DstPort)
	dst[36] = r.Pad1
	dst[37] = r.TCPFlags
	dst[38] = r.Prot
	dst[39] = r.Tos
	binary.BigEndian.PutUint16(dst[40:42], r.SrcAS)
	binary.BigEndian.PutUint16(dst[42:44], r.DstAS)
	dst[44] = r.SrcMask
	dst[45] = r.DstMask
	binary.BigEndian.PutUint16(dst[46:48], r.Pad2)
}
