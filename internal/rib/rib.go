// Package rib implements the multi-source, dual-family Routing
// Information Base (spec.md C3) and, in nexthop.go/group.go, the
// recursive nexthop resolver and ECMP group cache (C4).
//
// The storage shape echoes sakateka-yanet2's rib.go (an atomic
// "changed-at" clock, a mutex-guarded trie, a typed update entry point)
// and ElodinLaarz-aft-simulator's rib.go (a candidate set per prefix,
// explicit withdraw flag), but the per-family trie itself is
// github.com/gaissmai/bart's Table[V] rather than a hand-rolled radix
// tree — see DESIGN.md for why the teacher's radix/radix.go doesn't
// generalize to a multi-candidate entry cheaply.
package rib

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaissmai/bart"
	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// Entry is everything the RIB stores for one exact prefix: the set of
// candidate routes and whichever one(s) are currently selected.
type Entry struct {
	Prefix     types.Prefix
	Candidates map[types.Key]types.Route
	Selected   []types.Route // usually len<=1; >1 only for distinct-interface connected routes (spec.md §3)
}

// RIB holds one prefix trie per address family and the shared nexthop
// resolver/group cache (owned here, consulted by both families).
type RIB struct {
	mu        sync.RWMutex
	v4        *bart.Table[*Entry]
	v6        *bart.Table[*Entry]
	resolver  *Resolver
	changedAt atomic.Int64
	fibOut    *bus.Channel[bus.RouteDelta]
	log       *zap.SugaredLogger

	// dependents/dependsOn track the recursive-nexthop dependency graph
	// (spec.md §4.4: "a recursive nexthop re-resolves whenever its
	// reference prefix changes best path"), keyed by Prefix.String().
	// dependents[upstream] is every prefix whose resolution last walked
	// through upstream; dependsOn[owner] is the inverse, kept so a
	// re-resolution can cleanly drop stale edges before adding new ones.
	dependents map[string]map[string]types.Prefix
	dependsOn  map[string]map[string]bool
}

// New creates an empty RIB wired to emit FIB deltas on fibOut.
func New(fibOut *bus.Channel[bus.RouteDelta], log *zap.SugaredLogger) *RIB {
	r := &RIB{
		v4:         &bart.Table[*Entry]{},
		v6:         &bart.Table[*Entry]{},
		fibOut:     fibOut,
		log:        log,
		dependents: map[string]map[string]types.Prefix{},
		dependsOn:  map[string]map[string]bool{},
	}
	r.changedAt.Store(time.Now().UnixNano())
	r.resolver = newResolver(r, log)
	return r
}

// Run is the RIB task (spec.md §5: "the RIB is mutable only by the RIB
// task"): it serializes every mutation — protocol/static deltas, kernel
// notifications demuxed by the FIB shim, and FIB install acks — through
// a single select loop instead of letting callers touch the trie
// directly from their own goroutines.
func (r *RIB) Run(ctx context.Context, b *bus.Bus) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-b.RIBIn.C:
			if !ok {
				return nil
			}
			r.Update(env.Body.Route)
		case env, ok := <-b.Kernel.C:
			if !ok {
				return nil
			}
			route := env.Body.Route
			route.Source = types.SourceKernel
			route.Withdraw = env.Body.Delete
			r.Update(route)
		case env, ok := <-b.FIBAcks.C:
			if !ok {
				return nil
			}
			r.Ack(env.Body)
		}
	}
}

func (r *RIB) table(f types.Family) *bart.Table[*Entry] {
	if f == types.FamilyIPv6 {
		return r.v6
	}
	return r.v4
}

// Update applies one route add/withdraw from a source and re-runs
// selection for the affected prefix only (spec.md §4.3).
func (r *RIB) Update(route types.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.table(route.Prefix.Family())
	key := route.Key()

	e, ok := t.Get(route.Prefix.Net())
	if !ok {
		if route.Withdraw {
			return
		}
		e = &Entry{Prefix: route.Prefix, Candidates: map[types.Key]types.Route{}}
		t.Insert(route.Prefix.Net(), e)
	}

	if route.Withdraw {
		delete(e.Candidates, key)
		if len(e.Candidates) == 0 {
			r.reselect(e) // withdraws every still-installed slot, releases its groups
			t.Delete(route.Prefix.Net())
			r.resweepDependents(route.Prefix)
			r.touch()
			return
		}
	} else {
		e.Candidates[key] = route
	}

	r.reselect(e)
	r.resweepDependents(route.Prefix)
	r.touch()
}

// resweepDependents re-runs selection for every prefix that recursively
// resolves through owner, breadth-first, so an upstream best-path change
// (add, withdraw, or reselect) propagates to dependents instead of
// leaving them resolved against a nexthop that no longer exists (spec.md
// §4.4, seed scenario 2). visited bounds the walk against a dependency
// cycle the resolver's own recursion guard would otherwise have refused
// to form in the first place.
func (r *RIB) resweepDependents(owner types.Prefix) {
	visited := map[string]bool{owner.String(): true}
	queue := []types.Prefix{owner}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		deps := r.dependents[cur.String()]
		keys := make([]string, 0, len(deps))
		prefixes := make([]types.Prefix, 0, len(deps))
		for k, p := range deps {
			keys = append(keys, k)
			prefixes = append(prefixes, p)
		}

		for i, depKey := range keys {
			if visited[depKey] {
				continue
			}
			visited[depKey] = true
			depPrefix := prefixes[i]
			if e, ok := r.table(depPrefix.Family()).Get(depPrefix.Net()); ok {
				r.reselect(e)
				queue = append(queue, depPrefix)
			}
		}
	}
}

func (r *RIB) touch() { r.changedAt.Store(time.Now().UnixNano()) }

// UpdatedAt reports when the RIB was last mutated, for reconcilers that
// want to notice churn without subscribing to every delta.
func (r *RIB) UpdatedAt() time.Time { return time.Unix(0, r.changedAt.Load()) }

// reselect recomputes Entry.Selected per spec.md §4.3 steps 1-4, then
// hands the previous selection to resolveAndEmit so it can diff against
// what is currently installed (step 4) and release the group references
// the previous selection held (spec.md §3 Invariant 2).
func (r *RIB) reselect(e *Entry) {
	prevSelected := e.Selected

	cands := make([]types.Route, 0, len(e.Candidates))
	for _, c := range e.Candidates {
		cands = append(cands, c)
	}
	if len(cands) == 0 {
		e.Selected = nil
		r.resolveAndEmit(e, prevSelected)
		return
	}

	minDist := cands[0].Distance
	for _, c := range cands[1:] {
		if c.Distance < minDist {
			minDist = c.Distance
		}
	}

	var winners []types.Route
	for _, c := range cands {
		if c.Distance == minDist {
			winners = append(winners, c)
		}
	}

	// Connected routes on distinct interfaces coexist rather than
	// competing (spec.md §3): if every min-distance winner is Connected
	// and they have distinct originators, keep them all selected
	// independently instead of merging/arbitrating between them.
	if allConnectedDistinct(winners) {
		e.Selected = winners
		r.resolveAndEmit(e, prevSelected)
		return
	}

	// Step 2: merge equal-distance, same-source, multipath-capable
	// candidates into one ECMP candidate; otherwise first-seen-by-source-
	// order wins deterministically (spec.md §9 Open Question decision).
	selected := selectOne(winners)
	e.Selected = []types.Route{selected}
	r.resolveAndEmit(e, prevSelected)
}

func allConnectedDistinct(winners []types.Route) bool {
	if len(winners) < 2 {
		return false
	}
	seen := map[string]bool{}
	for _, w := range winners {
		if w.Source != types.SourceConnected {
			return false
		}
		k := w.Key().Originator
		if seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}

// selectOne implements spec.md §4.3 step 2: merge same-source multipath
// candidates sharing the winning (lowest-metric) value, else pick
// deterministically by source order (lowest types.Source value first).
func selectOne(winners []types.Route) types.Route {
	sort.Slice(winners, func(i, j int) bool {
		if winners[i].Source != winners[j].Source {
			return winners[i].Source < winners[j].Source
		}
		return winners[i].Metric < winners[j].Metric
	})

	best := winners[0]
	if !best.Source.Multipath() {
		return best
	}

	// Gather every same-source candidate at best's metric, merge nexthops.
	merged := append([]types.Nexthop{}, best.Nexthops...)
	for _, w := range winners[1:] {
		if w.Source == best.Source && w.Metric == best.Metric {
			merged = append(merged, w.Nexthops...)
		}
	}
	best.Nexthops = types.SortNexthops(merged)
	return best
}

// identityKey names the FIB "slot" a selected route occupies across
// reselects, so resolveAndEmit can tell a replacement from a withdrawal.
// A single merged/best-path selection always occupies slot "" (its
// winning candidate may change identity between generations without
// that being a distinct slot); distinct-interface connected routes each
// keep their own slot, keyed by originator (spec.md §3).
func identityKey(route types.Route, multi bool) string {
	if !multi {
		return ""
	}
	return route.Key().Originator
}

// routeSignature is the resolved-state fingerprint resolveAndEmit diffs
// against the previous generation: the content-stable group ID if
// resolved, a sentinel otherwise. Two routes with the same signature
// need no FIB delta between them (spec.md §4.3 step 4).
func routeSignature(route types.Route) string {
	if !route.Flags.Resolved {
		return "unresolved"
	}
	for _, nh := range route.Nexthops {
		if nh.Kind == types.NexthopGroup {
			return fmt.Sprintf("g%d", nh.GroupID)
		}
	}
	return "unresolved"
}

// resolveAndEmit resolves the nexthops of every currently-selected route,
// emitting a FIB delta only where the resolved signature actually changed
// from prevSelected's (spec.md §4.3 step 4), then releases every group
// reference prevSelected held. Releasing after the new acquire (rather
// than before) means a group whose content is unchanged across the two
// generations never transits refcount 0, keeping its kernel nexthop-ID
// stable (spec.md §3 Invariant 2).
func (r *RIB) resolveAndEmit(e *Entry, prevSelected []types.Route) {
	multi := len(e.Selected) > 1
	prevMulti := len(prevSelected) > 1
	prevByKey := make(map[string]types.Route, len(prevSelected))
	for _, pr := range prevSelected {
		prevByKey[identityKey(pr, prevMulti)] = pr
	}

	seen := make(map[string]bool, len(e.Selected))
	for i := range e.Selected {
		route := &e.Selected[i]
		route.Flags.Selected = true
		key := identityKey(*route, multi)
		seen[key] = true

		gid, resolved, deps := r.resolver.resolve(route.Prefix, route.Nexthops)
		r.trackDependencies(route.Prefix, deps)
		route.Flags.Resolved = resolved
		if resolved {
			children, _, _ := r.resolver.groups.Lookup(gid)
			route.Nexthops = []types.Nexthop{{Kind: types.NexthopGroup, GroupID: gid, Children: children}}
		} else {
			route.Flags.FIBInstalled = false
		}
		sig := routeSignature(*route)

		prev, existed := prevByKey[key]
		if existed && routeSignature(prev) == sig {
			continue
		}
		if resolved {
			if r.fibOut != nil {
				r.fibOut.Send("rib", bus.RouteDelta{Route: *route})
			}
		} else if existed {
			wd := prev
			wd.Withdraw = true
			if r.fibOut != nil {
				r.fibOut.Send("rib", bus.RouteDelta{Route: wd})
			}
		}
	}

	// A previously occupied slot with no successor in e.Selected (a
	// distinct-interface candidate withdrawn, or the whole entry emptied)
	// needs its own explicit withdraw.
	for key, pr := range prevByKey {
		if seen[key] || !pr.Flags.Resolved {
			continue
		}
		wd := pr
		wd.Withdraw = true
		if r.fibOut != nil {
			r.fibOut.Send("rib", bus.RouteDelta{Route: wd})
		}
	}

	for _, pr := range prevSelected {
		if !pr.Flags.Resolved {
			continue
		}
		for _, nh := range pr.Nexthops {
			if nh.Kind == types.NexthopGroup {
				r.resolver.release(nh.GroupID)
			}
		}
	}
}

// trackDependencies replaces owner's recursive-nexthop dependency edges
// with deps, so a later change to any of deps triggers owner's
// re-resolution via resweepDependents (spec.md §4.4).
func (r *RIB) trackDependencies(owner types.Prefix, deps []types.Prefix) {
	ownerKey := owner.String()

	for upstreamKey := range r.dependsOn[ownerKey] {
		delete(r.dependents[upstreamKey], ownerKey)
	}
	delete(r.dependsOn, ownerKey)

	if len(deps) == 0 {
		return
	}
	upstreamKeys := make(map[string]bool, len(deps))
	for _, dep := range deps {
		upstreamKey := dep.String()
		upstreamKeys[upstreamKey] = true
		if r.dependents[upstreamKey] == nil {
			r.dependents[upstreamKey] = map[string]types.Prefix{}
		}
		r.dependents[upstreamKey][ownerKey] = owner
	}
	r.dependsOn[ownerKey] = upstreamKeys
}

// Ack applies a FIB install/replace result: on failure the route is kept
// selected but marked not-fib-installed (spec.md §7 "Kernel rejection").
func (r *RIB) Ack(res bus.FIBResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.table(res.Prefix.Family())
	e, ok := t.Get(res.Prefix.Net())
	if !ok {
		return
	}
	for i := range e.Selected {
		if e.Selected[i].Prefix.Equal(res.Prefix) {
			e.Selected[i].Flags.FIBInstalled = res.OK
		}
	}
}

// LongestMatch performs an LPM query for the nexthop resolver and other
// protocols asking "what route covers this address" (spec.md §4.4, §4.3
// "serves recursive resolvers... and protocols querying interface-or-
// address-for-outbound-nexthop").
func (r *RIB) LongestMatch(f types.Family, addr netip.Addr) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.table(f).Lookup(addr)
	return e, ok
}

// Show returns a snapshot of every entry in a family's table, for the
// `show ip[v6] route` CLI surface (spec.md §6). Show APIs never error —
// an empty RIB just returns an empty slice (spec.md §7).
func (r *RIB) Show(f types.Family) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.table(f).All() {
		cp := *e
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix.String() < out[j].Prefix.String() })
	return out
}
