package rdr

import "fmt"

const minFieldCount = 25

// maxSubscriberID/maxAccessString/maxInfoString are the fixed destination
// capacities field values are copied into; STRING fields longer than these
// are silently truncated (see FieldReader.String).
const (
	maxSubscriberID  = 65 // 64 chars + NUL
	maxAccessString  = 160
	maxInfoString    = 160
)

// Transaction is the decoded payload of a TRANSACTION_RDR (tag
// TagTransaction) record's first 25 fields.
type Transaction struct {
	SubscriberID           string
	PackageID              int16
	ServiceID              int32
	ProtocolID             int16
	SkippedSessions        int32
	ServerIP               [4]byte
	ServerPort             uint16
	AccessString           string
	InfoString             string
	ClientIP               [4]byte
	ClientPort             uint16
	InitiatingSide         int8
	ReportTime             uint32
	MillisecDuration       uint32
	TimeFrame              int8
	SessionUpstreamVolume  uint32
	SessionDownstreamVolume uint32
	SubscriberCounterID    uint16
	GlobalCounterID        uint16
	PackageCounterID       uint16
	IPProtocol             uint8
	ProtocolSignature      int32
	ZoneID                 int32
	FlavorID               int32
	FlowCloseMode          uint8
}

// TransactionUsage is the decoded payload of a TRANSACTION_USAGE_RDR (tag
// TagTransactionUsage) record's first 25 fields. Identical to Transaction
// except field 5 is GenerationReason rather than SkippedSessions.
type TransactionUsage struct {
	SubscriberID            string
	PackageID               int16
	ServiceID               int32
	ProtocolID              int16
	GenerationReason        uint32
	ServerIP                [4]byte
	ServerPort              uint16
	AccessString            string
	InfoString              string
	ClientIP                [4]byte
	ClientPort              uint16
	InitiatingSide          int8
	ReportTime              uint32
	MillisecDuration        uint32
	TimeFrame               int8
	SessionUpstreamVolume   uint32
	SessionDownstreamVolume uint32
	SubscriberCounterID     uint16
	GlobalCounterID         uint16
	PackageCounterID        uint16
	IPProtocol              uint8
	ProtocolSignature       int32
	ZoneID                  int32
	FlavorID                int32
	FlowCloseMode           uint8
}

// Record is the result of decoding one RDR packet: the header is always
// populated; exactly one of Transaction/TransactionUsage is set, depending
// on Header.Tag. Unrecognized tags leave both nil.
type Record struct {
	Header            Header
	Transaction       *Transaction
	TransactionUsage  *TransactionUsage
}

// Decode parses one complete RDR packet (as sized by Sniff) into a Record.
// Unrecognized tags succeed with no typed payload — only the header is
// populated. Recognized tags with field_cnt < 25, or a field that fails
// type/size validation, return an error; the caller (pkg/ingest) is
// responsible for treating that as "drop this packet, resync one byte past
// the scan's start offset".
func Decode(pkt []byte) (Record, error) {
	if len(pkt) < HeaderSize {
		return Record{}, ErrTruncated
	}
	hdr := DecodeHeader(pkt)
	rec := Record{Header: hdr}

	switch hdr.Tag {
	case TagTransaction:
		if hdr.FieldCount < minFieldCount {
			return rec, fmt.Errorf("rdr: transaction record has %d fields, want >= %d", hdr.FieldCount, minFieldCount)
		}
		t, err := decodeTransaction(pkt)
		if err != nil {
			return rec, err
		}
		rec.Transaction = &t
	case TagTransactionUsage:
		if hdr.FieldCount < minFieldCount {
			return rec, fmt.Errorf("rdr: transaction-usage record has %d fields, want >= %d", hdr.FieldCount, minFieldCount)
		}
		u, err := decodeTransactionUsage(pkt)
		if err != nil {
			return rec, err
		}
		rec.TransactionUsage = &u
	}
	return rec, nil
}

func decodeTransaction(pkt []byte) (Transaction, error) {
	var t Transaction
	r := NewFieldReader(pkt, HeaderSize, len(pkt))
	buf := make([]byte, maxSubscriberID)

	n, err := r.String(buf)
	if err != nil {
		return t, err
	}
	t.SubscriberID = string(buf[:n])

	if t.PackageID, err = r.Int16(); err != nil {
		return t, err
	}
	if t.ServiceID, err = r.Int32(); err != nil {
		return t, err
	}
	if t.ProtocolID, err = r.Int16(); err != nil {
		return t, err
	}
	if t.SkippedSessions, err = r.Int32(); err != nil {
		return t, err
	}
	if t.ServerIP, err = r.IPv4(); err != nil {
		return t, err
	}
	if v, err := r.Uint16(); err != nil {
		return t, err
	} else {
		t.ServerPort = v
	}

	accessBuf := make([]byte, maxAccessString)
	if n, err = r.String(accessBuf); err != nil {
		return t, err
	}
	t.AccessString = string(accessBuf[:n])

	infoBuf := make([]byte, maxInfoString)
	if n, err = r.String(infoBuf); err != nil {
		return t, err
	}
	t.InfoString = string(infoBuf[:n])

	if t.ClientIP, err = r.IPv4(); err != nil {
		return t, err
	}
	if t.ClientPort, err = r.Uint16(); err != nil {
		return t, err
	}
	if t.InitiatingSide, err = r.Int8(); err != nil {
		return t, err
	}
	if t.ReportTime, err = r.Time(); err != nil {
		return t, err
	}
	if t.MillisecDuration, err = r.Uint32(); err != nil {
		return t, err
	}
	if t.TimeFrame, err = r.Int8(); err != nil {
		return t, err
	}
	if t.SessionUpstreamVolume, err = r.Uint32(); err != nil {
		return t, err
	}
	if t.SessionDownstreamVolume, err = r.Uint32(); err != nil {
		return t, err
	}
	if t.SubscriberCounterID, err = r.Uint16(); err != nil {
		return t, err
	}
	if t.GlobalCounterID, err = r.Uint16(); err != nil {
		return t, err
	}
	if t.PackageCounterID, err = r.Uint16(); err != nil {
		return t, err
	}
	if t.IPProtocol, err = r.Uint8(); err != nil {
		return t, err
	}
	if t.ProtocolSignature, err = r.Int32(); err != nil {
		return t, err
	}
	if t.ZoneID, err = r.Int32(); err != nil {
		return t, err
	}
	if t.FlavorID, err = r.Int32(); err != nil {
		return t, err
	}
	if t.FlowCloseMode, err = r.Uint8(); err != nil {
		return t, err
	}
	return t, nil
}

func decodeTransactionUsage(pkt []byte) (TransactionUsage, error) {
	var u TransactionUsage
	r := NewFieldReader(pkt, HeaderSize, len(pkt))
	buf := make([]byte, maxSubscriberID)

	n, err := r.String(buf)
	if err != nil {
		return u, err
	}
	u.SubscriberID = string(buf[:n])

	if u.PackageID, err = r.Int16(); err != nil {
		return u, err
	}
	if u.ServiceID, err = r.Int32(); err != nil {
		return u, err
	}
	if u.ProtocolID, err = r.Int16(); err != nil {
		return u, err
	}
	if u.GenerationReason, err = r.Uint32(); err != nil {
		return u, err
	}
	if u.ServerIP, err = r.IPv4(); err != nil {
		return u, err
	}
	if u.ServerPort, err = r.Uint16(); err != nil {
		return u, err
	}

	accessBuf := make([]byte, maxAccessString)
	if n, err = r.String(accessBuf); err != nil {
		return u, err
	}
	u.AccessString = string(accessBuf[:n])

	infoBuf := make([]byte, maxInfoString)
	if n, err = r.String(infoBuf); err != nil {
		return u, err
	}
	u.InfoString = string(infoBuf[:n])

	if u.ClientIP, err = r.IPv4(); err != nil {
		return u, err
	}
	if u.ClientPort, err = r.Uint16(); err != nil {
		return u, err
	}
	if u.InitiatingSide, err = r.Int8(); err != nil {
		return u, err
	}
	if u.ReportTime, err = r.Time(); err != nil {
		return u, err
	}
	if u.MillisecDuration, err = r.Uint32(); err != nil {
		return u, err
	}
	if u.TimeFrame, err = r.Int8(); err != nil {
		return u, err
	}
	if u.SessionUpstreamVolume, err = r.Uint32(); err != nil {
		return u, err
	}
	if u.SessionDownstreamVolume, err = r.Uint32(); err != nil {
		return u, err
	}
	if u.SubscriberCounterID, err = r.Uint16(); err != nil {
		return u, err
	}
	if u.GlobalCounterID, err = r.Uint16(); err != nil {
		return u, err
	}
	if u.PackageCounterID, err = r.Uint16(); err != nil {
		return u, err
	}
	if u.IPProtocol, err = r.Uint8(); err != nil {
		return u, err
	}
	if u.ProtocolSignature, err = r.Int32(); err != nil {
		return u, err
	}
	if u.ZoneID, err = r.Int32(); err != nil {
		return u, err
	}
	if u.FlavorID, err = r.Int32(); err != nil {
		return u, err
	}
	if u.FlowCloseMode, err = r.Uint8(); err != nil {
		return u, err
	}
	return u, nil
}
