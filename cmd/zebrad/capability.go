package main

import (
	"go.uber.org/zap"

	"github.com/syndtr/gocapability/capability"
)

// requiredCaps are the Linux capabilities SPEC_FULL.md §6 lists for the
// kernel boundary: rtnetlink route/link/address/nexthop programming,
// raw IS-IS sockets, and the BGP TCP listener on a privileged port.
var requiredCaps = []capability.Cap{
	capability.CAP_NET_ADMIN,
	capability.CAP_NET_RAW,
	capability.CAP_NET_BIND_SERVICE,
	capability.CAP_NET_BROADCAST,
}

// checkCapabilities logs (never panics, per SPEC_FULL.md §6) any missing
// capability in the calling process's effective set, following
// jsimonetti-hodos's init-time capability/permission check style.
func checkCapabilities(log *zap.SugaredLogger) {
	caps, err := capability.NewPid2(0)
	if err != nil {
		log.Warnw("could not inspect process capabilities", "error", err)
		return
	}
	if err := caps.Load(); err != nil {
		log.Warnw("could not load process capabilities", "error", err)
		return
	}
	for _, c := range requiredCaps {
		if !caps.Get(capability.EFFECTIVE, c) {
			log.Warnw("missing capability, some kernel operations may fail", "capability", c.String())
		}
	}
}
