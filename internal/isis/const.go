package isis

import "time"

// Timing constants spec.md §4.5 describes. HelloJitter is the +/-25%
// randomization applied to the hello interval.
const (
	DefaultHelloInterval = 10 * time.Second
	HelloJitter          = 0.25
	DefaultHoldMultiplier = 3
	DefaultCSNPInterval  = 10 * time.Second
	DISOriginationDelay  = 2 * time.Second
	LSPRefreshInterval   = 15 * time.Minute
	MaxAge               = 1200 // seconds, ISO/IEC 10589 default
	AgeTick              = 1 * time.Second

	// PurgeWindow is an Open Question this module decides explicitly: how
	// long a zero-lifetime LSP is kept around for reflood before removal.
	// Not pinned by any retrieved source; chosen to comfortably exceed one
	// flooding round-trip across the LSDB.
	PurgeWindow = 60 * time.Second

	// SPFHoldDown coalesces bursts of LSDB churn into a single recompute.
	SPFHoldDown = 50 * time.Millisecond

	MaxSPFNexthops = 8
)

// CircuitType mirrors the configured per-interface level participation.
type CircuitType int

const (
	CircuitL1 CircuitType = iota + 1
	CircuitL2
	CircuitL1L2
)

func (c CircuitType) hasLevel(level int) bool {
	switch c {
	case CircuitL1:
		return level == 1
	case CircuitL2:
		return level == 2
	default:
		return true
	}
}

// LinkType distinguishes broadcast LAN circuits (needing DIS election)
// from point-to-point circuits (none needed).
type LinkType int

const (
	LinkBroadcast LinkType = iota
	LinkPointToPoint
)
