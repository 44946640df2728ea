// Package isisproto implements the IS-IS PDU and TLV wire format
// (ISO/IEC 10589, RFC 1195's IP TLVs, RFC 5305's extended reachability):
// IIH (L1/L2/P2P), LSP (L1/L2), CSNP (L1/L2), and PSNP (L1/L2) PDUs, and
// the TLVs DESIGN.md lists for this package: Area Addresses (1), IS Neighbors
// (2/6), Padding (8), IP Interface Addr (132), Dynamic Hostname (137),
// Extended IS Reachability (22), Extended IP Reachability (135).
//
// There is no IS-IS codec anywhere in the retrieved pack to ground on
// directly (see DESIGN.md); the buffer-reading helpers below are built
// in the same read-off-a-bytes.Buffer idiom internal/bgpproto/stream.go
// uses (itself adapted from transitorykris-kbgp's stream/stream.go),
// applied to IS-IS's TLV framing instead of BGP's.
package isisproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func readBytes(buf *bytes.Buffer, n int) ([]byte, error) {
	if buf.Len() < n {
		return nil, fmt.Errorf("isisproto: need %d bytes, have %d", n, buf.Len())
	}
	b := make([]byte, n)
	if _, err := buf.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func readByte(buf *bytes.Buffer) (byte, error) {
	b, err := readBytes(buf, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func readUint16(buf *bytes.Buffer) (uint16, error) {
	b, err := readBytes(buf, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func readUint32(buf *bytes.Buffer) (uint32, error) {
	b, err := readBytes(buf, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func putUint16(buf *bytes.Buffer, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	buf.Write(b)
}

func putUint32(buf *bytes.Buffer, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	buf.Write(b)
}

// SystemID is the 6-octet NSAP system identifier.
type SystemID [6]byte

func (s SystemID) String() string {
	return fmt.Sprintf("%02x%02x.%02x%02x.%02x%02x", s[0], s[1], s[2], s[3], s[4], s[5])
}

// LSPID is system-id(6) || pseudonode(1) || fragment(1), per spec.md's
// GLOSSARY definition.
type LSPID struct {
	System     SystemID
	Pseudonode byte
	Fragment   byte
}

func (l LSPID) String() string {
	return fmt.Sprintf("%s.%02x-%02x", l.System, l.Pseudonode, l.Fragment)
}

// ParseNET parses a configured NET literal such as
// "49.0001.0000.0000.0001.00" (area(variable).system-id(6).nsel(1)) into
// its area-address bytes and system-id, per spec.md §6's `router isis
// net <NET>`. Dots are cosmetic; only the hex nibbles matter.
func ParseNET(net string) (area []byte, sysID SystemID, err error) {
	hex := make([]byte, 0, len(net))
	for _, r := range net {
		if r == '.' {
			continue
		}
		hex = append(hex, byte(r))
	}
	if len(hex)%2 != 0 {
		return nil, SystemID{}, fmt.Errorf("isisproto: NET %q has an odd number of nibbles", net)
	}
	raw := make([]byte, 0, len(hex)/2)
	for i := 0; i+1 < len(hex); i += 2 {
		var b byte
		if _, err := fmt.Sscanf(string(hex[i:i+2]), "%02x", &b); err != nil {
			return nil, SystemID{}, fmt.Errorf("isisproto: NET %q: %w", net, err)
		}
		raw = append(raw, b)
	}
	if len(raw) < 8 {
		return nil, SystemID{}, fmt.Errorf("isisproto: NET %q shorter than area+system-id+nsel", net)
	}
	area = raw[:len(raw)-7]
	copy(sysID[:], raw[len(raw)-7:len(raw)-1])
	return area, sysID, nil
}

func decodeLSPID(b []byte) (LSPID, error) {
	if len(b) != 8 {
		return LSPID{}, fmt.Errorf("isisproto: bad LSP ID length %d", len(b))
	}
	var id LSPID
	copy(id.System[:], b[:6])
	id.Pseudonode = b[6]
	id.Fragment = b[7]
	return id, nil
}

func encodeLSPID(id LSPID) []byte {
	b := make([]byte, 8)
	copy(b[:6], id.System[:])
	b[6] = id.Pseudonode
	b[7] = id.Fragment
	return b
}
