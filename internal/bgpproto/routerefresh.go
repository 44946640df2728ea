package bgpproto

import "bytes"

// RouteRefresh is a decoded ROUTE-REFRESH message (RFC 2918 §3).
type RouteRefresh struct {
	AFI  uint16
	SAFI byte
}

func DecodeRouteRefresh(body []byte) (RouteRefresh, error) {
	buf := bytes.NewBuffer(body)
	afi, err := readUint16(buf)
	if err != nil {
		return RouteRefresh{}, err
	}
	if _, err := readByte(buf); err != nil { // reserved
		return RouteRefresh{}, err
	}
	safi, err := readByte(buf)
	if err != nil {
		return RouteRefresh{}, err
	}
	return RouteRefresh{AFI: afi, SAFI: safi}, nil
}

func EncodeRouteRefresh(r RouteRefresh) []byte {
	body := bytes.NewBuffer(nil)
	putUint16(body, r.AFI)
	body.WriteByte(0)
	body.WriteByte(r.SAFI)
	return frame(TypeRouteRefresh, body.Bytes())
}
