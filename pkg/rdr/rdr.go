// Package rdr decodes Cisco SCE Raw Data Records (RDR, version 1) from a raw
// byte stream. The wire format is a 5-octet size prefix (one PPC identifier
// octet plus four ASCII-digit payload-size octets), a 15-octet fixed header,
// and a sequence of self-describing tagged fields.
package rdr

import "encoding/binary"

const (
	// HeaderSize is the size, in octets, of the fixed RDRv1 header
	// (ppc_num + payload_size + src + dst + src_port + dst_port + fc_id +
	// tag + field_cnt).
	HeaderSize = 20

	// SizePrefixLen is the number of octets in the leading size prefix
	// (ppc_num plus the four ASCII-digit payload_size octets).
	SizePrefixLen = 5

	// MinPayloadSize is the smallest payload_size accepted: the 15
	// fixed header octets that follow the 5-octet size prefix (the
	// size prefix itself is not counted toward payload_size, but the
	// remaining header fields are).
	MinPayloadSize = HeaderSize - SizePrefixLen

	// MaxPayloadSize is the largest payload_size the four ASCII digits
	// can express.
	MaxPayloadSize = 9999

	// MaxPacketSize bounds a full RDR packet: SizePrefixLen + MaxPayloadSize.
	MaxPacketSize = SizePrefixLen + MaxPayloadSize
)

// Tag values for the two record kinds this bridge understands. Other tags
// are recognized for header-level inspection only.
const (
	TagTransaction      uint32 = 0xf0f0f010
	TagTransactionUsage uint32 = 0xf0f0f438
)

// Field type codes, as carried on the wire.
const (
	TypeInt8    = 11
	TypeInt16   = 12
	TypeInt32   = 13
	TypeUint8   = 14
	TypeUint16  = 15
	TypeUint32  = 16
	TypeFloat   = 21
	TypeBoolean = 31
	TypeString  = 41
)

// Header is the decoded, host-native form of the 20-octet RDRv1 header.
type Header struct {
	PPCNum      uint8
	PayloadSize int
	Src         uint8
	Dst         uint8
	SrcPort     uint16
	DstPort     uint16
	FCID        uint32
	Tag         uint32
	FieldCount  uint8
}

// Sniff reports whether data begins with a well-formed RDR size prefix.
//
//	> 0 : total packet size (header + payload)
//	= 0 : not an RDR packet
//	< 0 : possibly an RDR packet, but data is truncated
//
// The PPC identifier octet (data[0]) is never validated — observed streams
// carry varied PPC values, so any octet is accepted there.
func Sniff(data []byte) int {
	if len(data) < SizePrefixLen {
		return -1
	}
	for _, b := range data[1:SizePrefixLen] {
		if b < '0' || b > '9' {
			return 0
		}
	}
	payloadSize := int(data[1]-'0')*1000 + int(data[2]-'0')*100 + int(data[3]-'0')*10 + int(data[4]-'0')
	if payloadSize < MinPayloadSize {
		return 0
	}
	total := payloadSize + SizePrefixLen
	if total > len(data) {
		return -1
	}
	return total
}

// DecodeHeader parses the fixed header out of a packet already known (via
// Sniff) to be at least HeaderSize octets long.
func DecodeHeader(data []byte) Header {
	return Header{
		PPCNum:      data[0],
		PayloadSize: len(data) - SizePrefixLen,
		Src:         data[5],
		Dst:         data[6],
		SrcPort:     binary.BigEndian.Uint16(data[7:9]),
		DstPort:     binary.BigEndian.Uint16(data[9:11]),
		FCID:        binary.BigEndian.Uint32(data[11:15]),
		Tag:         binary.BigEndian.Uint32(data[15:19]),
		FieldCount:  data[19],
	}
}

// Name returns a human-readable name for known RDR tags, mirroring the
// original rdr_name() lookup; unrecognized tags report "UNKNOWN".
func Name(tag uint32) string {
	switch tag {
	case 0xf0f0f000:
		return "SUBSCRIBER_USAGE_RDR"
	case 0xf0f0f002:
		return "REALTIME_SUBSCRIBER_USAGE_RDR"
	case 0xf0f0f004:
		return "PACKAGE_USAGE_RDR"
	case 0xf0f0f005:
		return "LINK_USAGE_RDR"
	case 0xf0f0f006:
		return "VIRTUAL_LINKS_USAGE_RDR"
	case TagTransaction:
		return "TRANSACTION_RDR"
	case TagTransactionUsage:
		return "TRANSACTION_USAGE_RDR"
	case 0xf0f0f43c:
		return "HTTP_TRANSACTION_USAGE_RDR"
	case 0xf0f0f440:
		return "RTSP_TRANSACTION_USAGE_RDR"
	case 0xf0f0f46a:
		return "VOIP_TRANSACTION_USAGE_RDR"
	default:
		return "UNKNOWN"
	}
}
