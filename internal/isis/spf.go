package isis

import (
	"net/netip"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/isisproto"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// nodeID is a system-id plus pseudonode, the SPF graph's vertex key
// (spec.md §4.5 SPF: "node keys are system-id (with pseudonode id for
// LANs)").
type nodeID [7]byte

func nodeFromLSPID(id isisproto.LSPID) nodeID {
	var n nodeID
	copy(n[:6], id.System[:])
	n[6] = id.Pseudonode
	return n
}

func nodeFromNeighbor(b [7]byte) nodeID { return nodeID(b) }

type edge struct {
	to     nodeID
	metric uint32
}

type prefixReach struct {
	prefix types.Prefix
	metric uint32
}

// spfResult is one reachable prefix's outcome: total metric and the set
// of first-hop nodes (root's direct neighbors) that achieve it, before
// resolving those first hops to concrete {interface, neighbor-ip}.
type spfResult struct {
	metric   uint32
	firstHop map[nodeID]bool
}

// runSPF computes Dijkstra's algorithm over level's LSDB (classic
// single-source shortest path, spec.md §4.5 SPF), rooted at self, and
// returns per-prefix results merged for ECMP.
func (inst *Instance) runSPF(level int) map[string]spfResult {
	lsdb := inst.lsdbFor(level)
	lsps := lsdb.All()

	adjacency := map[nodeID][]edge{}
	reach := map[nodeID][]prefixReach{}

	for _, lsp := range lsps {
		if lsp.RemainingLifetime == 0 {
			continue
		}
		node := nodeFromLSPID(lsp.ID)
		for _, tlv := range lsp.TLVs {
			if tlv.Type == isisproto.TLVExtendedISReach {
				entries, err := isisproto.DecodeExtendedISReach(tlv)
				if err != nil {
					continue
				}
				for _, e := range entries {
					adjacency[node] = append(adjacency[node], edge{to: nodeFromNeighbor(e.Neighbor), metric: e.Metric})
				}
			}
			if tlv.Type == isisproto.TLVExtendedIPReach {
				entries, err := isisproto.DecodeExtendedIPReach(tlv)
				if err != nil {
					continue
				}
				for _, e := range entries {
					addr := netip.AddrFrom4(e.Prefix)
					p, err := types.NewPrefix(addr, e.Length)
					if err != nil {
						continue
					}
					reach[node] = append(reach[node], prefixReach{prefix: p, metric: e.Metric})
				}
			}
		}
	}

	root := nodeFromLSPID(isisproto.LSPID{System: inst.SystemID})
	dist := map[nodeID]uint32{root: 0}
	firstHop := map[nodeID]map[nodeID]bool{root: {}}
	visited := map[nodeID]bool{}

	// All nodes ever seen, so isolated nodes still get a (unreachable)
	// entry and the main loop terminates.
	all := map[nodeID]bool{root: true}
	for n, edges := range adjacency {
		all[n] = true
		for _, e := range edges {
			all[e.to] = true
		}
	}

	for len(visited) < len(all) {
		var u nodeID
		found := false
		var best uint32
		for n := range all {
			if visited[n] {
				continue
			}
			d, ok := dist[n]
			if !ok {
				continue
			}
			if !found || d < best {
				best, u, found = d, n, true
			}
		}
		if !found {
			break
		}
		visited[u] = true
		for _, e := range adjacency[u] {
			nd := dist[u] + e.metric
			cur, ok := dist[e.to]

			var hops map[nodeID]bool
			if u == root {
				hops = map[nodeID]bool{e.to: true}
			} else {
				hops = firstHop[u]
			}

			if !ok || nd < cur {
				dist[e.to] = nd
				merged := map[nodeID]bool{}
				for k := range hops {
					merged[k] = true
				}
				firstHop[e.to] = merged
			} else if nd == cur {
				for k := range hops {
					firstHop[e.to][k] = true
				}
			}
		}
	}

	results := map[string]spfResult{}
	for node, d := range dist {
		if node == root {
			continue
		}
		for _, pr := range reach[node] {
			total := d + pr.metric
			key := pr.prefix.String()
			cur, ok := results[key]
			if !ok || total < cur.metric {
				hops := map[nodeID]bool{}
				for k := range firstHop[node] {
					hops[k] = true
				}
				results[key] = spfResult{metric: total, firstHop: hops}
			} else if total == cur.metric {
				for k := range firstHop[node] {
					cur.firstHop[k] = true
				}
			}
		}
	}
	return results
}

// resolveNexthops maps a result's first-hop node set to concrete
// {ifindex, neighbor-ip} nexthops by scanning every circuit's up
// neighbors for a matching system-id.
func (inst *Instance) resolveNexthops(level int, firstHops map[nodeID]bool) []types.Nexthop {
	var out []types.Nexthop
	for _, c := range inst.circuitsForLevel(level) {
		for _, n := range c.UpNeighbors(level) {
			var key nodeID
			copy(key[:6], n.SystemID[:])
			if !firstHops[key] {
				continue
			}
			if !n.IPAddr.IsValid() {
				continue
			}
			out = append(out, types.Nexthop{Kind: types.NexthopUnicast, Addr: n.IPAddr, Ifindex: c.Ifindex, Weight: 1})
			if len(out) >= MaxSPFNexthops {
				return out
			}
		}
	}
	return out
}

// emitRoutes pushes route_add/del deltas tagged source=isis to the RIB,
// diffing against the previous SPF result for this level so withdrawn
// prefixes are explicitly removed (spec.md §4.5's "RIB feed").
func (inst *Instance) emitRoutes(level int, results map[string]spfResult) {
	inst.mu.Lock()
	prev := inst.lastRoutes[level]
	inst.lastRoutes[level] = map[string]bool{}
	for key := range results {
		inst.lastRoutes[level][key] = true
	}
	inst.mu.Unlock()

	for key := range prev {
		if _, ok := results[key]; ok {
			continue
		}
		p, err := netip.ParsePrefix(key)
		if err != nil {
			continue
		}
		prefix, err := types.NewPrefix(p.Addr(), p.Bits())
		if err != nil {
			continue
		}
		inst.ribOut.Send("isis", bus.RouteDelta{Route: types.Route{
			Prefix: prefix,
			Source: types.SourceISIS,
			Withdraw: true,
		}})
	}

	for key, res := range results {
		p, err := netip.ParsePrefix(key)
		if err != nil {
			continue
		}
		prefix, err := types.NewPrefix(p.Addr(), p.Bits())
		if err != nil {
			continue
		}
		nhs := inst.resolveNexthops(level, res.firstHop)
		if len(nhs) == 0 {
			continue
		}
		inst.ribOut.Send("isis", bus.RouteDelta{Route: types.Route{
			Prefix:   prefix,
			Source:   types.SourceISIS,
			Distance: inst.Distance,
			Metric:   res.metric,
			Nexthops: nhs,
		}})
	}
}
