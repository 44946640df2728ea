package rib

import (
	"net/netip"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/types"
)

// maxRecursionDepth caps the chain a Recursive nexthop may walk through
// the RIB before giving up, per spec.md §4.4 ("capped at a small
// constant depth").
const maxRecursionDepth = 8

// Resolver implements the nexthop resolution and ECMP group cache
// (spec.md C4). It is owned exclusively by the RIB that created it —
// "Nexthop-group map is private to the nexthop resolver" (spec.md §5).
type Resolver struct {
	rib    *RIB
	groups *groupCache
	log    *zap.SugaredLogger
}

func newResolver(r *RIB, log *zap.SugaredLogger) *Resolver {
	return &Resolver{rib: r, groups: newGroupCache(), log: log}
}

// resolve walks nhs (a route's raw nexthops) to a concrete, installable
// set, building or reusing a content-addressed nexthop group. It returns
// the group's stable ID, whether resolution succeeded, and every prefix
// the walk passed through (for the caller's dependency tracking, spec.md
// §4.4) regardless of whether resolution ultimately succeeded.
func (res *Resolver) resolve(owner types.Prefix, nhs []types.Nexthop) (groupID uint32, ok bool, deps []types.Prefix) {
	visited := map[string]types.Prefix{owner.String(): owner}
	var resolved []types.Nexthop
	failed := false
	for _, nh := range nhs {
		switch nh.Kind {
		case types.NexthopDirect:
			resolved = append(resolved, nh)
		case types.NexthopUnicast, types.NexthopRecursive:
			leaves, ok := res.resolveOne(owner, nh.Addr, 0, visited)
			if !ok {
				failed = true
				continue
			}
			resolved = append(resolved, leaves...)
		case types.NexthopGroup:
			// Already a group reference (e.g. re-resolution); expand its
			// children so the new group content-addresses the same way.
			resolved = append(resolved, nh.Children...)
		}
	}
	deps = depsFromVisited(visited, owner)
	if failed || len(resolved) == 0 {
		return 0, false, deps
	}
	return res.groups.acquire(resolved), true, deps
}

func depsFromVisited(visited map[string]types.Prefix, owner types.Prefix) []types.Prefix {
	ownerKey := owner.String()
	out := make([]types.Prefix, 0, len(visited))
	for k, p := range visited {
		if k == ownerKey {
			continue
		}
		out = append(out, p)
	}
	return out
}

// resolveOne does one longest-prefix-match lookup for addr, excluding
// the querying route's own prefix and the default route (always; no
// setting re-enables it),
// and recurses through the result if it is itself unresolved/recursive.
// A cycle (a prefix already visited in this chain) terminates resolution
// as unresolved, per spec.md §4.4. Every prefix visited, even along a
// failed chain, is recorded into visited so the caller can depend on it:
// a later change to that prefix may turn failure into success.
func (res *Resolver) resolveOne(owner types.Prefix, addr netip.Addr, depth int, visited map[string]types.Prefix) ([]types.Nexthop, bool) {
	if depth >= maxRecursionDepth {
		return nil, false
	}

	fam := types.FamilyIPv4
	if addr.Is6() {
		fam = types.FamilyIPv6
	}

	e, ok := res.rib.LongestMatch(fam, addr)
	if !ok {
		return nil, false
	}
	if e.Prefix.Equal(owner) {
		// Resolving through your own prefix is not allowed.
		return nil, false
	}
	if e.Prefix.Bits() == 0 {
		// The default route never resolves a nexthop, whatever kind of
		// nexthop it carries.
		return nil, false
	}
	if _, seen := visited[e.Prefix.String()]; seen {
		return nil, false
	}
	visited[e.Prefix.String()] = e.Prefix

	if len(e.Selected) == 0 {
		return nil, false
	}

	var leaves []types.Nexthop
	for _, sel := range e.Selected {
		for _, nh := range sel.Nexthops {
			switch nh.Kind {
			case types.NexthopDirect, types.NexthopUnicast:
				n := nh
				if n.Kind == types.NexthopUnicast && n.Ifindex == 0 {
					// Still indirect: keep walking through this address.
					sub, ok := res.resolveOne(owner, n.Addr, depth+1, visited)
					if !ok {
						return nil, false
					}
					leaves = append(leaves, sub...)
					continue
				}
				leaves = append(leaves, n)
			case types.NexthopGroup:
				leaves = append(leaves, n.Children...)
			}
		}
	}
	if len(leaves) == 0 {
		return nil, false
	}
	return leaves, true
}

// release drops one reference to a group; at refcount zero the cache
// forgets it. No kernel nexthop object is added or removed for groups:
// the FIB receives routes with their nexthops inline.
func (res *Resolver) release(id uint32) {
	res.groups.release(id)
}
