package bgpproto

import "bytes"

// Update is a decoded UPDATE message (RFC 4271 §4.3). WithdrawnRoutes and
// NLRI carry IPv4 prefixes directly in the legacy fields; IPv6 (and any
// future AFI/SAFI) travels inside PathAttributes via MP_REACH/MP_UNREACH
// (RFC 4760), decoded on demand with DecodeMPReach/DecodeMPUnreach.
type Update struct {
	WithdrawnRoutes []NLRI
	PathAttributes  []Attribute
	NLRI            []NLRI
}

func DecodeUpdate(body []byte) (Update, error) {
	buf := bytes.NewBuffer(body)

	wLen, err := readUint16(buf)
	if err != nil {
		return Update{}, err
	}
	wBytes, err := readBytes(buf, int(wLen))
	if err != nil {
		return Update{}, err
	}
	withdrawn, err := decodePrefixList(bytes.NewBuffer(wBytes), false)
	if err != nil {
		return Update{}, err
	}

	attrLen, err := readUint16(buf)
	if err != nil {
		return Update{}, err
	}
	attrBytes, err := readBytes(buf, int(attrLen))
	if err != nil {
		return Update{}, err
	}
	attrs, err := decodeAttributes(attrBytes)
	if err != nil {
		return Update{}, err
	}

	nlris, err := decodePrefixList(buf, false)
	if err != nil {
		return Update{}, err
	}

	return Update{WithdrawnRoutes: withdrawn, PathAttributes: attrs, NLRI: nlris}, nil
}

func EncodeUpdate(u Update) []byte {
	body := bytes.NewBuffer(nil)

	wBuf := bytes.NewBuffer(nil)
	encodePrefixList(wBuf, u.WithdrawnRoutes)
	putUint16(body, uint16(wBuf.Len()))
	body.Write(wBuf.Bytes())

	attrBytes := encodeAttributes(u.PathAttributes)
	putUint16(body, uint16(len(attrBytes)))
	body.Write(attrBytes)

	encodePrefixList(body, u.NLRI)

	return frame(TypeUpdate, body.Bytes())
}

// Attribute looks up the first path attribute of the given type, the
// shape callers commonly want (ORIGIN, NEXT_HOP, LOCAL_PREF are each
// single-valued).
func (u Update) Attribute(t AttrType) (Attribute, bool) {
	for _, a := range u.PathAttributes {
		if a.Type == t {
			return a, true
		}
	}
	return Attribute{}, false
}

// EORMarker reports whether this UPDATE is an End-of-RIB marker (RFC
// 4724 §2): an otherwise-empty UPDATE for IPv4 unicast, or an empty
// MP_UNREACH_NLRI for any other AFI/SAFI.
func (u Update) EORMarker() bool {
	if len(u.WithdrawnRoutes) == 0 && len(u.NLRI) == 0 && len(u.PathAttributes) == 0 {
		return true
	}
	if len(u.PathAttributes) == 1 && len(u.WithdrawnRoutes) == 0 && len(u.NLRI) == 0 {
		if a, ok := u.Attribute(AttrMPUnreachNLRI); ok {
			mp, err := DecodeMPUnreach(a)
			return err == nil && len(mp.NLRI) == 0
		}
	}
	return false
}
