package bgpproto

import (
	"net/netip"
	"testing"
)

func TestOpenRoundTrip(t *testing.T) {
	o := Open{
		MyAS:       23456, // AS_TRANS, since the real AS travels in CapFourOctetAS
		HoldTime:   90,
		Identifier: 0x01020304,
		Capabilities: []Capability{
			{Code: CapFourOctetAS, Value: []byte{0, 1, 0x00, 0x00}},
			{Code: CapMultiprotocol, Value: MultiprotocolValue(AFIIPv4, SAFIUnicast)},
		},
	}
	raw, err := EncodeOpen(o)
	if err != nil {
		t.Fatalf("EncodeOpen: %v", err)
	}

	hdr, body, consumed, err := SplitMessage(raw)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if consumed != len(raw) {
		t.Errorf("expected to consume %d bytes, got %d", len(raw), consumed)
	}
	if hdr.Type != TypeOpen {
		t.Errorf("expected OPEN type, got %s", hdr.Type)
	}

	got, err := DecodeOpen(body)
	if err != nil {
		t.Fatalf("DecodeOpen: %v", err)
	}
	if got.MyAS != o.MyAS || got.HoldTime != o.HoldTime || got.Identifier != o.Identifier {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, o)
	}
	if !got.HasCapability(CapFourOctetAS) || !got.HasCapability(CapMultiprotocol) {
		t.Errorf("expected both capabilities preserved, got %+v", got.Capabilities)
	}
	mpc, _ := got.Capability(CapMultiprotocol)
	afi, safi, err := ParseMultiprotocol(mpc.Value)
	if err != nil || afi != AFIIPv4 || safi != SAFIUnicast {
		t.Errorf("expected multiprotocol AFI/SAFI preserved, got afi=%d safi=%d err=%v", afi, safi, err)
	}
}

func TestUpdateRoundTripIPv4(t *testing.T) {
	u := Update{
		PathAttributes: []Attribute{
			NewOrigin(OriginIGP),
			NewASPath([]ASPathSegment{{Type: ASSequence, AS: []uint32{65001, 65002}}}),
			NewNextHopV4([4]byte{192, 0, 2, 1}),
			NewLocalPref(100),
			NewCommunities([]uint32{0xfde90001}),
		},
		NLRI: []NLRI{{Prefix: netip.MustParsePrefix("203.0.113.0/24")}},
	}
	raw := EncodeUpdate(u)

	_, body, consumed, err := SplitMessage(raw)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if consumed != len(raw) {
		t.Errorf("expected to consume %d bytes, got %d", len(raw), consumed)
	}

	got, err := DecodeUpdate(body)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if len(got.NLRI) != 1 || got.NLRI[0].Prefix.String() != "203.0.113.0/24" {
		t.Fatalf("expected NLRI preserved, got %+v", got.NLRI)
	}

	originAttr, ok := got.Attribute(AttrOrigin)
	if !ok {
		t.Fatalf("expected ORIGIN attribute")
	}
	origin, err := DecodeOrigin(originAttr)
	if err != nil || origin != OriginIGP {
		t.Errorf("expected IGP origin, got %v err=%v", origin, err)
	}

	asPathAttr, _ := got.Attribute(AttrASPath)
	segs, err := DecodeASPath(asPathAttr)
	if err != nil || ASPathLength(segs) != 2 {
		t.Errorf("expected AS_PATH length 2, got %d err=%v", ASPathLength(segs), err)
	}

	commAttr, _ := got.Attribute(AttrCommunities)
	comms, err := DecodeCommunities(commAttr)
	if err != nil || len(comms) != 1 || comms[0] != 0xfde90001 {
		t.Errorf("expected community preserved, got %+v err=%v", comms, err)
	}
}

func TestUpdateWithdrawOnly(t *testing.T) {
	u := Update{WithdrawnRoutes: []NLRI{{Prefix: netip.MustParsePrefix("198.51.100.0/24")}}}
	raw := EncodeUpdate(u)
	_, body, _, err := SplitMessage(raw)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	got, err := DecodeUpdate(body)
	if err != nil {
		t.Fatalf("DecodeUpdate: %v", err)
	}
	if len(got.WithdrawnRoutes) != 1 {
		t.Fatalf("expected one withdrawn route, got %d", len(got.WithdrawnRoutes))
	}
	if got.EORMarker() {
		t.Errorf("a withdraw-only UPDATE is not an End-of-RIB marker")
	}
}

func TestEORMarkerEmptyUpdate(t *testing.T) {
	u := Update{}
	if !u.EORMarker() {
		t.Errorf("expected an empty UPDATE to be an End-of-RIB marker")
	}
}

func TestMPReachRoundTrip(t *testing.T) {
	mp := MPReach{
		AFI:     AFIIPv6,
		SAFI:    SAFIUnicast,
		NextHop: netip.MustParseAddr("2001:db8::1").AsSlice(),
		NLRI:    []NLRI{{Prefix: netip.MustParsePrefix("2001:db8:1::/48")}},
	}
	a := NewMPReach(mp)
	got, err := DecodeMPReach(a)
	if err != nil {
		t.Fatalf("DecodeMPReach: %v", err)
	}
	if got.AFI != AFIIPv6 || len(got.NLRI) != 1 || got.NLRI[0].Prefix.String() != "2001:db8:1::/48" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	n := Notification{Code: ErrHoldTimerExpired, Subcode: 0, Data: nil}
	raw := EncodeNotification(n)
	_, body, _, err := SplitMessage(raw)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	got, err := DecodeNotification(body)
	if err != nil {
		t.Fatalf("DecodeNotification: %v", err)
	}
	if got.Code != ErrHoldTimerExpired {
		t.Errorf("expected hold timer expired, got %s", got.Code)
	}
}

func TestKeepaliveFraming(t *testing.T) {
	raw := EncodeKeepalive()
	hdr, body, consumed, err := SplitMessage(raw)
	if err != nil {
		t.Fatalf("SplitMessage: %v", err)
	}
	if hdr.Type != TypeKeepalive || len(body) != 0 || consumed != HeaderLength {
		t.Errorf("expected bare 19-byte KEEPALIVE, got type=%s bodyLen=%d consumed=%d", hdr.Type, len(body), consumed)
	}
}

func TestSplitMessageShortHeader(t *testing.T) {
	if _, _, _, err := SplitMessage([]byte{1, 2, 3}); err == nil {
		t.Errorf("expected an error on a short header")
	}
}
