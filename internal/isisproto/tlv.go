package isisproto

import "bytes"

// TLVType identifies a Type-Length-Value entry's semantics (ISO/IEC 10589
// §9, RFC 1195, RFC 5305).
type TLVType byte

const (
	TLVAreaAddresses        TLVType = 1
	TLVISNeighbors          TLVType = 2 // "IS Neighbors" (old-style metric)
	TLVISNeighborsVariant   TLVType = 6
	TLVPadding              TLVType = 8
	TLVLSPEntries           TLVType = 9
	TLVIPInterfaceAddr      TLVType = 132
	TLVDynamicHostname      TLVType = 137
	TLVExtendedISReach      TLVType = 22
	TLVExtendedIPReach      TLVType = 135
)

// MaxLSPEntriesPerTLV is the hard rule spec.md §4.5 calls out: at most
// 15 LSP entries (each 16 octets: lifetime(2)+lsp-id(8)+seq(4)+checksum(2))
// fit in one TLV's 255-octet value field; longer lists split across TLVs.
const MaxLSPEntriesPerTLV = 15

// TLV is one raw, undecoded Type-Length-Value entry.
type TLV struct {
	Type  TLVType
	Value []byte
}

func decodeTLVs(b []byte) ([]TLV, error) {
	buf := bytes.NewBuffer(b)
	var out []TLV
	for buf.Len() > 0 {
		t, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		l, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		v, err := readBytes(buf, int(l))
		if err != nil {
			return nil, err
		}
		out = append(out, TLV{Type: TLVType(t), Value: v})
	}
	return out, nil
}

func encodeTLVs(tlvs []TLV) []byte {
	buf := bytes.NewBuffer(nil)
	for _, t := range tlvs {
		buf.WriteByte(byte(t.Type))
		buf.WriteByte(byte(len(t.Value)))
		buf.Write(t.Value)
	}
	return buf.Bytes()
}

func findTLVs(tlvs []TLV, t TLVType) []TLV {
	var out []TLV
	for _, tlv := range tlvs {
		if tlv.Type == t {
			out = append(out, tlv)
		}
	}
	return out
}

// AreaAddressesTLV (type 1): a list of variable-length area addresses,
// each prefixed by its own length octet.
func EncodeAreaAddresses(areas [][]byte) TLV {
	buf := bytes.NewBuffer(nil)
	for _, a := range areas {
		buf.WriteByte(byte(len(a)))
		buf.Write(a)
	}
	return TLV{Type: TLVAreaAddresses, Value: buf.Bytes()}
}

func DecodeAreaAddresses(t TLV) ([][]byte, error) {
	buf := bytes.NewBuffer(t.Value)
	var out [][]byte
	for buf.Len() > 0 {
		l, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		a, err := readBytes(buf, int(l))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ISNeighbor is one entry of the old-style IS Neighbors TLV (type 2):
// a 1-octet metric (high bit reserved/ignored here) plus a 7-octet
// neighbor ID (system-id + pseudonode).
type ISNeighbor struct {
	Metric   byte
	Neighbor [7]byte
}

func EncodeISNeighbors(neighbors []ISNeighbor) TLV {
	buf := bytes.NewBuffer(nil)
	buf.WriteByte(0) // virtual flag octet, unused
	for _, n := range neighbors {
		buf.WriteByte(n.Metric)
		buf.WriteByte(0) // delay metric, unsupported, reserved
		buf.WriteByte(0) // expense metric, unsupported, reserved
		buf.WriteByte(0) // error metric, unsupported, reserved
		buf.Write(n.Neighbor[:])
	}
	return TLV{Type: TLVISNeighbors, Value: buf.Bytes()}
}

func DecodeISNeighbors(t TLV) ([]ISNeighbor, error) {
	buf := bytes.NewBuffer(t.Value)
	if buf.Len() > 0 {
		if _, err := readByte(buf); err != nil { // virtual flag octet
			return nil, err
		}
	}
	var out []ISNeighbor
	for buf.Len() >= 11 {
		metric, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		if _, err := readBytes(buf, 3); err != nil { // delay/expense/error metrics
			return nil, err
		}
		id, err := readBytes(buf, 7)
		if err != nil {
			return nil, err
		}
		var nb ISNeighbor
		nb.Metric = metric
		copy(nb.Neighbor[:], id)
		out = append(out, nb)
	}
	return out, nil
}

// ExtendedISReach is one entry of the Extended IS Reachability TLV
// (type 22, RFC 5305): a 7-octet neighbor ID and a 24-bit (3-octet)
// wide metric, with no sub-TLVs emitted.
type ExtendedISReach struct {
	Neighbor [7]byte
	Metric   uint32 // only the low 24 bits are significant on the wire
}

func EncodeExtendedISReach(entries []ExtendedISReach) TLV {
	buf := bytes.NewBuffer(nil)
	for _, e := range entries {
		buf.Write(e.Neighbor[:])
		buf.WriteByte(byte(e.Metric >> 16))
		buf.WriteByte(byte(e.Metric >> 8))
		buf.WriteByte(byte(e.Metric))
		buf.WriteByte(0) // sub-TLV length, none emitted
	}
	return TLV{Type: TLVExtendedISReach, Value: buf.Bytes()}
}

func DecodeExtendedISReach(t TLV) ([]ExtendedISReach, error) {
	buf := bytes.NewBuffer(t.Value)
	var out []ExtendedISReach
	for buf.Len() >= 11 {
		id, err := readBytes(buf, 7)
		if err != nil {
			return nil, err
		}
		metricBytes, err := readBytes(buf, 3)
		if err != nil {
			return nil, err
		}
		subLen, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		if _, err := readBytes(buf, int(subLen)); err != nil {
			return nil, err
		}
		var e ExtendedISReach
		copy(e.Neighbor[:], id)
		e.Metric = uint32(metricBytes[0])<<16 | uint32(metricBytes[1])<<8 | uint32(metricBytes[2])
		out = append(out, e)
	}
	return out, nil
}

// ExtendedIPReach is one entry of the Extended IP Reachability TLV
// (type 135, RFC 5305): a 32-bit metric, up-down bit, prefix length
// and the significant prefix octets.
type ExtendedIPReach struct {
	Metric uint32
	UpDown bool
	Prefix [4]byte
	Length int // prefix length in bits, 0-32
}

func EncodeExtendedIPReach(entries []ExtendedIPReach) TLV {
	buf := bytes.NewBuffer(nil)
	for _, e := range entries {
		putUint32(buf, e.Metric)
		flags := byte(e.Length)
		if e.UpDown {
			flags |= 0x80
		}
		buf.WriteByte(flags)
		byteLen := (e.Length + 7) / 8
		buf.Write(e.Prefix[:byteLen])
	}
	return TLV{Type: TLVExtendedIPReach, Value: buf.Bytes()}
}

func DecodeExtendedIPReach(t TLV) ([]ExtendedIPReach, error) {
	buf := bytes.NewBuffer(t.Value)
	var out []ExtendedIPReach
	for buf.Len() > 0 {
		metric, err := readUint32(buf)
		if err != nil {
			return nil, err
		}
		flags, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		length := int(flags &^ 0x80)
		byteLen := (length + 7) / 8
		raw, err := readBytes(buf, byteLen)
		if err != nil {
			return nil, err
		}
		var e ExtendedIPReach
		e.Metric = metric
		e.UpDown = flags&0x80 != 0
		e.Length = length
		copy(e.Prefix[:], raw)
		out = append(out, e)
	}
	return out, nil
}

// EncodePadding returns an n-octet Padding TLV (type 8), used to pad
// IIH PDUs up to the link MTU so oversized-PDU filtering can't black-
// hole adjacencies (ISO/IEC 10589 §8.4.3).
func EncodePadding(n int) TLV {
	return TLV{Type: TLVPadding, Value: make([]byte, n)}
}

// EncodeDynamicHostname (type 137, RFC 2763) carries the originating
// router's configured hostname as raw ASCII.
func EncodeDynamicHostname(name string) TLV {
	return TLV{Type: TLVDynamicHostname, Value: []byte(name)}
}

func DecodeDynamicHostname(t TLV) string { return string(t.Value) }

// EncodeIPInterfaceAddrs (type 132) lists each of the originator's IPv4
// interface addresses as packed 4-octet values.
func EncodeIPInterfaceAddrs(addrs [][4]byte) TLV {
	buf := bytes.NewBuffer(nil)
	for _, a := range addrs {
		buf.Write(a[:])
	}
	return TLV{Type: TLVIPInterfaceAddr, Value: buf.Bytes()}
}

func DecodeIPInterfaceAddrs(t TLV) ([][4]byte, error) {
	buf := bytes.NewBuffer(t.Value)
	var out [][4]byte
	for buf.Len() >= 4 {
		raw, err := readBytes(buf, 4)
		if err != nil {
			return nil, err
		}
		var a [4]byte
		copy(a[:], raw)
		out = append(out, a)
	}
	return out, nil
}

// LSPEntry is one summarized row inside a CSNP/PSNP's LSP-Entries TLV
// (type 9): enough to decide whether the local LSDB copy is current.
type LSPEntry struct {
	RemainingLifetime uint16
	ID                LSPID
	Sequence          uint32
	Checksum          uint16
}

// EncodeLSPEntries splits entries into TLVs of at most
// MaxLSPEntriesPerTLV each, per spec.md §4.5's hard rule.
func EncodeLSPEntries(entries []LSPEntry) []TLV {
	var tlvs []TLV
	for i := 0; i < len(entries); i += MaxLSPEntriesPerTLV {
		end := i + MaxLSPEntriesPerTLV
		if end > len(entries) {
			end = len(entries)
		}
		buf := bytes.NewBuffer(nil)
		for _, e := range entries[i:end] {
			putUint16(buf, e.RemainingLifetime)
			buf.Write(encodeLSPID(e.ID))
			putUint32(buf, e.Sequence)
			putUint16(buf, e.Checksum)
		}
		tlvs = append(tlvs, TLV{Type: TLVLSPEntries, Value: buf.Bytes()})
	}
	return tlvs
}

// DecodeLSPEntries accepts any number of entries per TLV on receive
// (spec.md §4.5: "parse any number >= 1 on receive"), only the emit
// side is capped.
func DecodeLSPEntries(tlvs []TLV) ([]LSPEntry, error) {
	var out []LSPEntry
	for _, t := range tlvs {
		if t.Type != TLVLSPEntries {
			continue
		}
		buf := bytes.NewBuffer(t.Value)
		for buf.Len() >= 10 {
			lifetime, err := readUint16(buf)
			if err != nil {
				return nil, err
			}
			idBytes, err := readBytes(buf, 8)
			if err != nil {
				return nil, err
			}
			id, err := decodeLSPID(idBytes)
			if err != nil {
				return nil, err
			}
			seq, err := readUint32(buf)
			if err != nil {
				return nil, err
			}
			checksum, err := readUint16(buf)
			if err != nil {
				return nil, err
			}
			out = append(out, LSPEntry{RemainingLifetime: lifetime, ID: id, Sequence: seq, Checksum: checksum})
		}
	}
	return out, nil
}
