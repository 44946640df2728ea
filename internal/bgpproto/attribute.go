package bgpproto

import (
	"bytes"
	"fmt"
)

// AttrFlag bits, per RFC 4271 §4.3 (the teacher's bgp/attribute.go names
// these optional/wellKnown/transitive/nonTransitive/partial/complete as
// predicates over one flags octet; kept as named bit constants here since
// the codec needs to both read and write them).
type AttrFlag byte

const (
	FlagOptional   AttrFlag = 1 << 7
	FlagTransitive AttrFlag = 1 << 6
	FlagPartial    AttrFlag = 1 << 5
	FlagExtLength  AttrFlag = 1 << 4
)

// AttrType is the Type Code octet of a path attribute (RFC 4271 §5 and
// the MP-BGP/extended-community extensions this daemon speaks).
type AttrType byte

const (
	AttrOrigin          AttrType = 1
	AttrASPath          AttrType = 2
	AttrNextHop         AttrType = 3
	AttrMultiExitDisc   AttrType = 4
	AttrLocalPref       AttrType = 5
	AttrAtomicAggregate AttrType = 6
	AttrAggregator      AttrType = 7
	AttrCommunities     AttrType = 8
	AttrMPReachNLRI     AttrType = 14
	AttrMPUnreachNLRI   AttrType = 15
	AttrAS4Path         AttrType = 17
	AttrAS4Aggregator   AttrType = 18
)

// Origin values (RFC 4271 §5.1.1).
type Origin byte

const (
	OriginIGP        Origin = 0
	OriginEGP        Origin = 1
	OriginIncomplete Origin = 2
)

func (o Origin) String() string {
	switch o {
	case OriginIGP:
		return "i"
	case OriginEGP:
		return "e"
	default:
		return "?"
	}
}

// ASPathSegmentType distinguishes an AS_SET from an AS_SEQUENCE (RFC 4271 §5.1.2).
type ASPathSegmentType byte

const (
	ASSet      ASPathSegmentType = 1
	ASSequence ASPathSegmentType = 2
)

type ASPathSegment struct {
	Type ASPathSegmentType
	AS   []uint32
}

// Attribute is one path attribute as framed on the wire. Raw holds the
// undecoded value bytes; callers switch on Type and parse Raw with the
// matching Decode* helper (DecodeOrigin, DecodeASPath, DecodeUint32Attr,
// etc.).
type Attribute struct {
	Flags AttrFlag
	Type  AttrType
	Raw   []byte
}

func (a Attribute) Optional() bool   { return a.Flags&FlagOptional != 0 }
func (a Attribute) Transitive() bool { return a.Flags&FlagTransitive != 0 }
func (a Attribute) Partial() bool    { return a.Flags&FlagPartial != 0 }

func decodeAttributes(b []byte) ([]Attribute, error) {
	buf := bytes.NewBuffer(b)
	var attrs []Attribute
	for buf.Len() > 0 {
		flags, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		typ, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		var length int
		if AttrFlag(flags)&FlagExtLength != 0 {
			l, err := readUint16(buf)
			if err != nil {
				return nil, err
			}
			length = int(l)
		} else {
			l, err := readByte(buf)
			if err != nil {
				return nil, err
			}
			length = int(l)
		}
		raw, err := readBytes(buf, length)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Flags: AttrFlag(flags), Type: AttrType(typ), Raw: raw})
	}
	return attrs, nil
}

func encodeAttributes(attrs []Attribute) []byte {
	buf := bytes.NewBuffer(nil)
	for _, a := range attrs {
		flags := a.Flags
		if len(a.Raw) > 255 {
			flags |= FlagExtLength
		} else {
			flags &^= FlagExtLength
		}
		buf.WriteByte(byte(flags))
		buf.WriteByte(byte(a.Type))
		if flags&FlagExtLength != 0 {
			putUint16(buf, uint16(len(a.Raw)))
		} else {
			buf.WriteByte(byte(len(a.Raw)))
		}
		buf.Write(a.Raw)
	}
	return buf.Bytes()
}

// NewOrigin builds the ORIGIN attribute (well-known mandatory, transitive).
func NewOrigin(o Origin) Attribute {
	return Attribute{Flags: FlagTransitive, Type: AttrOrigin, Raw: []byte{byte(o)}}
}

func DecodeOrigin(a Attribute) (Origin, error) {
	if len(a.Raw) != 1 {
		return 0, fmt.Errorf("bgpproto: bad ORIGIN length %d", len(a.Raw))
	}
	return Origin(a.Raw[0]), nil
}

// NewASPath builds the AS_PATH attribute using 4-octet AS numbers (this
// daemon only speaks the RFC 6793 4-octet-AS wire format, negotiated via
// CapFourOctetAS and assumed present per SPEC_FULL.md §4.6).
func NewASPath(segments []ASPathSegment) Attribute {
	buf := bytes.NewBuffer(nil)
	for _, seg := range segments {
		buf.WriteByte(byte(seg.Type))
		buf.WriteByte(byte(len(seg.AS)))
		for _, as := range seg.AS {
			putUint32(buf, as)
		}
	}
	return Attribute{Flags: FlagTransitive, Type: AttrASPath, Raw: buf.Bytes()}
}

func DecodeASPath(a Attribute) ([]ASPathSegment, error) {
	buf := bytes.NewBuffer(a.Raw)
	var segs []ASPathSegment
	for buf.Len() > 0 {
		typ, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		count, err := readByte(buf)
		if err != nil {
			return nil, err
		}
		seg := ASPathSegment{Type: ASPathSegmentType(typ)}
		for i := 0; i < int(count); i++ {
			as, err := readUint32(buf)
			if err != nil {
				return nil, err
			}
			seg.AS = append(seg.AS, as)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

// ASPathLength returns the AS_PATH length used by best-path selection:
// an AS_SEQUENCE contributes one per member, an AS_SET contributes one
// regardless of its member count (RFC 4271 §9.1.2.2, tie-break rule b).
func ASPathLength(segs []ASPathSegment) int {
	n := 0
	for _, s := range segs {
		if s.Type == ASSequence {
			n += len(s.AS)
		} else if len(s.AS) > 0 {
			n++
		}
	}
	return n
}

func NewNextHopV4(ip [4]byte) Attribute {
	return Attribute{Flags: FlagTransitive, Type: AttrNextHop, Raw: ip[:]}
}

func DecodeNextHopV4(a Attribute) ([4]byte, error) {
	var ip [4]byte
	if len(a.Raw) != 4 {
		return ip, fmt.Errorf("bgpproto: bad NEXT_HOP length %d", len(a.Raw))
	}
	copy(ip[:], a.Raw)
	return ip, nil
}

func NewMultiExitDisc(med uint32) Attribute {
	buf := bytes.NewBuffer(nil)
	putUint32(buf, med)
	return Attribute{Flags: FlagOptional, Type: AttrMultiExitDisc, Raw: buf.Bytes()}
}

func DecodeUint32Attr(a Attribute) (uint32, error) {
	if len(a.Raw) != 4 {
		return 0, fmt.Errorf("bgpproto: bad attribute length %d", len(a.Raw))
	}
	return uint32(a.Raw[0])<<24 | uint32(a.Raw[1])<<16 | uint32(a.Raw[2])<<8 | uint32(a.Raw[3]), nil
}

func NewLocalPref(pref uint32) Attribute {
	buf := bytes.NewBuffer(nil)
	putUint32(buf, pref)
	return Attribute{Flags: FlagTransitive, Type: AttrLocalPref, Raw: buf.Bytes()}
}

func NewAtomicAggregate() Attribute {
	return Attribute{Flags: FlagTransitive, Type: AttrAtomicAggregate, Raw: nil}
}

func NewAggregator(as uint32, id [4]byte) Attribute {
	buf := bytes.NewBuffer(nil)
	putUint32(buf, as)
	buf.Write(id[:])
	return Attribute{Flags: FlagOptional | FlagTransitive, Type: AttrAggregator, Raw: buf.Bytes()}
}

// NewCommunities builds the COMMUNITIES attribute (RFC 1997): each
// community is a 4-octet opaque value, conventionally ASN:value.
func NewCommunities(values []uint32) Attribute {
	buf := bytes.NewBuffer(nil)
	for _, v := range values {
		putUint32(buf, v)
	}
	return Attribute{Flags: FlagOptional | FlagTransitive, Type: AttrCommunities, Raw: buf.Bytes()}
}

func DecodeCommunities(a Attribute) ([]uint32, error) {
	buf := bytes.NewBuffer(a.Raw)
	var out []uint32
	for buf.Len() > 0 {
		v, err := readUint32(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
