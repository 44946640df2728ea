// Package bgpproto implements the BGP-4 wire format (RFC 4271 §4 and the
// MP-BGP/4-octet-AS/route-refresh extensions SPEC_FULL.md §4.6 requires):
// message header, OPEN, UPDATE (with path attributes), NOTIFICATION,
// KEEPALIVE, and ROUTE-REFRESH, plus their constituent path attributes
// and capability TLVs.
//
// The buffer-reading helpers below adapt transitorykris-kbgp's
// stream/stream.go in place: same read-N-bytes-off-a-bytes.Buffer shape,
// generalized to also report errors instead of looping forever on short
// reads, since a wire parser must fail on truncated input rather than spin.
package bgpproto

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

func readBytes(buf *bytes.Buffer, n int) ([]byte, error) {
	if buf.Len() < n {
		return nil, fmt.Errorf("bgpproto: need %d bytes, have %d", n, buf.Len())
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
