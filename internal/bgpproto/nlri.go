package bgpproto

import (
	"bytes"
	"fmt"
	"net/netip"
)

// NLRI is one IPv4 or IPv6 prefix carried in an UPDATE message's
// withdrawn-routes or NLRI field, or inside MP_REACH/MP_UNREACH for
// other address families (RFC 4271 §4.3, RFC 4760).
type NLRI struct {
	Prefix netip.Prefix
}

// decodePrefixList parses the packed <length, prefix> tuples used by
// both the withdrawn-routes/NLRI fields and MP_REACH/MP_UNREACH.
func decodePrefixList(buf *bytes.Buffer, v6 bool) ([]NLRI, error) {
	var out []NLRI
	for buf.Len() > 0 {
		bits, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		byteLen := (int(bits) + 7) / 8
		raw, err := readBytes(buf, byteLen)
		if err != nil {
			return nil, err
		}
		width := 4
		if v6 {
			width = 16
		}
		full := make([]byte, width)
		copy(full, raw)
		addr, ok := netip.AddrFromSlice(full)
		if !ok {
			return nil, fmt.Errorf("bgpproto: bad NLRI address bytes")
		}
		pfx, err := addr.Prefix(int(bits))
		if err != nil {
			return nil, err
		}
		out = append(out, NLRI{Prefix: pfx.Masked()})
	}
	return out, nil
}

func encodePrefixList(buf *bytes.Buffer, nlris []NLRI) {
	for _, n := range nlris {
		bits := n.Prefix.Bits()
		buf.WriteByte(byte(bits))
		byteLen := (bits + 7) / 8
		addrBytes := n.Prefix.Addr().AsSlice()
		buf.Write(addrBytes[:byteLen])
	}
}

const (
	AFIIPv4 uint16 = 1
	AFIIPv6 uint16 = 2

	SAFIUnicast byte = 1
)

// MPReach decodes/encodes the MP_REACH_NLRI attribute (RFC 4760 §3).
type MPReach struct {
	AFI     uint16
	SAFI    byte
	NextHop []byte
	NLRI    []NLRI
}

func DecodeMPReach(a Attribute) (MPReach, error) {
	buf := bytes.NewBuffer(a.Raw)
	afi, err := readUint16(buf)
	if err != nil {
		return MPReach{}, err
	}
	safi, err := readByte(buf)
	if err != nil {
		return MPReach{}, err
	}
	nhLen, err := readByte(buf)
	if err != nil {
		return MPReach{}, err
	}
	nh, err := readBytes(buf, int(nhLen))
	if err != nil {
		return MPReach{}, err
	}
	// one reserved "Subnetwork Points of Attachment" octet
	if _, err := readByte(buf); err != nil {
		return MPReach{}, err
	}
	nlris, err := decodePrefixList(buf, afi == AFIIPv6)
	if err != nil {
		return MPReach{}, err
	}
	return MPReach{AFI: afi, SAFI: safi, NextHop: nh, NLRI: nlris}, nil
}

func NewMPReach(m MPReach) Attribute {
	buf := bytes.NewBuffer(nil)
	putUint16(buf, m.AFI)
	buf.WriteByte(m.SAFI)
	buf.WriteByte(byte(len(m.NextHop)))
	buf.Write(m.NextHop)
	buf.WriteByte(0)
	encodePrefixList(buf, m.NLRI)
	return Attribute{Flags: FlagOptional, Type: AttrMPReachNLRI, Raw: buf.Bytes()}
}

// MPUnreach decodes/encodes the MP_UNREACH_NLRI attribute (RFC 4760 §4).
type MPUnreach struct {
	AFI  uint16
	SAFI byte
	NLRI []NLRI
}

func DecodeMPUnreach(a Attribute) (MPUnreach, error) {
	buf := bytes.NewBuffer(a.Raw)
	afi, err := readUint16(buf)
	if err != nil {
		return MPUnreach{}, err
	}
	safi, err := readByte(buf)
	if err != nil {
		return MPUnreach{}, err
	}
	nlris, err := decodePrefixList(buf, afi == AFIIPv6)
	if err != nil {
		return MPUnreach{}, err
	}
	return MPUnreach{AFI: afi, SAFI: safi, NLRI: nlris}, nil
}

func NewMPUnreach(m MPUnreach) Attribute {
	buf := bytes.NewBuffer(nil)
	putUint16(buf, m.AFI)
	buf.WriteByte(m.SAFI)
	encodePrefixList(buf, m.NLRI)
	return Attribute{Flags: FlagOptional, Type: AttrMPUnreachNLRI, Raw: buf.Bytes()}
}
