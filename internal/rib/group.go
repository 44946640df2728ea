package rib

import (
	"sync"

	"github.com/zebra-rs/zebra-rs/internal/types"
)

type groupEntry struct {
	nexthops []types.Nexthop
	refcount int
}

// groupCache maps a nexthop group's content hash to its stable ID and
// refcount, so unrelated churn elsewhere in the RIB never perturbs an
// already-installed kernel nexthop-ID (spec.md §3 "Groups must
// deduplicate exactly so the kernel's nexthop-ID space is stable").
type groupCache struct {
	mu      sync.Mutex
	byKey   map[string]uint32
	byID    map[uint32]*groupEntry
	nextID  uint32
}

func newGroupCache() *groupCache {
	return &groupCache{
		byKey: map[string]uint32{},
		byID:  map[uint32]*groupEntry{},
	}
}

// acquire returns the group ID for nhs, creating one (refcount 1) or
// incrementing an existing one's refcount (spec.md §3 "installed... when
// refcount transitions 0->1").
func (g *groupCache) acquire(nhs []types.Nexthop) uint32 {
	key := types.GroupKey(nhs)

	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.byKey[key]; ok {
		g.byID[id].refcount++
		return id
	}

	g.nextID++
	id := g.nextID
	g.byKey[key] = id
	g.byID[id] = &groupEntry{nexthops: types.SortNexthops(nhs), refcount: 1}
	return id
}

// release decrements a group's refcount, removing it entirely (and its
// key mapping) once it reaches zero (spec.md §3 "uninstalled on 1->0").
func (g *groupCache) release(id uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.byID[id]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount <= 0 {
		delete(g.byID, id)
		for k, v := range g.byKey {
			if v == id {
				delete(g.byKey, k)
				break
			}
		}
	}
}

// Lookup returns a group's current children and refcount, for `show
// nexthop` (spec.md §6).
func (g *groupCache) Lookup(id uint32) (nexthops []types.Nexthop, refcount int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.byID[id]
	if !ok {
		return nil, 0, false
	}
	return e.nexthops, e.refcount, true
}

// ShowNexthops returns every live group for the `show nexthop` CLI
// surface (spec.md §6).
func (r *RIB) ShowNexthops() map[uint32][]types.Nexthop {
	r.resolver.groups.mu.Lock()
	defer r.resolver.groups.mu.Unlock()
	out := make(map[uint32][]types.Nexthop, len(r.resolver.groups.byID))
	for id, e := range r.resolver.groups.byID {
		out[id] = e.nexthops
	}
	return out
}
