package bgp

// Category is a bitmask selecting which classes of BGP activity to log
// verbosely (SPEC_FULL.md §4.6 "ten debug categories" — the nine RFC
// 4271 §8 FSM/event groups plus policy decisions, mirrored here as
// independent bits a peer's debug field can OR together).
type Category uint16

const (
	CategoryFSM Category = 1 << iota
	CategoryEvents
	CategoryKeepalive
	CategoryUpdate
	CategoryOpen
	CategoryNotification
	CategoryPolicy
	CategoryBestPath
	CategoryRouteRefresh
	CategoryCapability
)

var categoryName = map[Category]string{
	CategoryFSM:          "fsm",
	CategoryEvents:       "events",
	CategoryKeepalive:    "keepalive",
	CategoryUpdate:       "update",
	CategoryOpen:         "open",
	CategoryNotification: "notification",
	CategoryPolicy:       "policy",
	CategoryBestPath:     "bestpath",
	CategoryRouteRefresh: "route-refresh",
	CategoryCapability:   "capability",
}

// SetDebug ORs in one or more categories to this peer's verbose logging mask.
func (p *Peer) SetDebug(c Category) { p.debug |= c }

// ClearDebug clears one or more categories.
func (p *Peer) ClearDebug(c Category) { p.debug &^= c }
