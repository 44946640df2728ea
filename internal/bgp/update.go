package bgp

import (
	"net/netip"

	"github.com/zebra-rs/zebra-rs/internal/bgpproto"
)

// handleUpdate applies RFC 4271 §9's Adj-RIB-In maintenance: withdrawn
// prefixes are removed (triggering reselection), new/changed NLRI are
// added after inbound policy, each driving a LocRIB.Update/Withdraw.
func (p *Peer) handleUpdate(u bgpproto.Update) {
	for _, w := range u.WithdrawnRoutes {
		p.adjRIBIn.Remove(w.Prefix)
		p.locRIB.Withdraw(p, w.Prefix, p.ribIn)
	}

	if mpUnreach, ok := u.Attribute(bgpproto.AttrMPUnreachNLRI); ok {
		if mp, err := bgpproto.DecodeMPUnreach(mpUnreach); err == nil {
			for _, n := range mp.NLRI {
				p.adjRIBIn.Remove(n.Prefix)
				p.locRIB.Withdraw(p, n.Prefix, p.ribIn)
			}
		}
	}

	if len(u.NLRI) == 0 {
		if _, ok := u.Attribute(bgpproto.AttrMPReachNLRI); !ok {
			return
		}
	}

	path := pathFromAttributes(u.PathAttributes)

	for _, n := range u.NLRI {
		path.Prefix = n.Prefix
		p.applyInbound(path)
	}

	if mpReach, ok := u.Attribute(bgpproto.AttrMPReachNLRI); ok {
		mp, err := bgpproto.DecodeMPReach(mpReach)
		if err != nil {
			return
		}
		nh, _ := netip.AddrFromSlice(mp.NextHop)
		path.NextHop = nh
		for _, n := range mp.NLRI {
			path.Prefix = n.Prefix
			p.applyInbound(path)
		}
	}
}

func pathFromAttributes(attrs []bgpproto.Attribute) PathInfo {
	path := PathInfo{Attributes: attrs, LocalPref: 100}
	for _, a := range attrs {
		switch a.Type {
		case bgpproto.AttrOrigin:
			if o, err := bgpproto.DecodeOrigin(a); err == nil {
				path.Origin = o
			}
		case bgpproto.AttrASPath:
			if segs, err := bgpproto.DecodeASPath(a); err == nil {
				path.ASPath = segs
			}
		case bgpproto.AttrNextHop:
			if ip, err := bgpproto.DecodeNextHopV4(a); err == nil {
				path.NextHop = netip.AddrFrom4(ip)
			}
		case bgpproto.AttrLocalPref:
			if v, err := bgpproto.DecodeUint32Attr(a); err == nil {
				path.LocalPref = v
			}
		case bgpproto.AttrMultiExitDisc:
			if v, err := bgpproto.DecodeUint32Attr(a); err == nil {
				path.MED = v
			}
		}
	}
	return path
}

func (p *Peer) applyInbound(path PathInfo) {
	if Apply(p.cfg.In, path) == Deny {
		if p.debug&CategoryPolicy != 0 {
			p.log.Debugw("bgp inbound policy denied prefix", "peer", p.cfg.RemoteAddr, "prefix", path.Prefix)
		}
		p.adjRIBIn.Remove(path.Prefix)
		p.locRIB.Withdraw(p, path.Prefix, p.ribIn)
		return
	}
	p.adjRIBIn.Add(path)
	p.locRIB.Update(p, path, p.ribIn)
}

// handleRouteRefresh answers a RFC 2918 ROUTE-REFRESH request by
// replaying every currently advertised prefix in Adj-RIB-Out as a fresh
// UPDATE, since Adj-RIB-Out already reflects the last applied outbound
// policy and needs no separate held state to resend from.
func (p *Peer) handleRouteRefresh(rr bgpproto.RouteRefresh) {
	if p.debug&CategoryRouteRefresh != 0 {
		p.log.Debugw("bgp route-refresh received", "peer", p.cfg.RemoteAddr, "afi", rr.AFI, "safi", rr.SAFI)
	}
	p.adjRIBOut.Replay(p.conn)
}
