// Package link holds the authoritative in-daemon interface inventory
// (spec.md C2): ifindex/name-keyed links, their addresses, and the
// connected-route deltas they emit to the RIB.
package link

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// Table is the canonical link/address inventory. Ifindex is the primary
// key; Link.Name may change without changing identity (spec.md §3).
type Table struct {
	mu      sync.RWMutex
	byIndex map[int]*types.Link
	byName  map[string]int
	ribIn   *bus.Channel[bus.RouteDelta]
}

func New(ribIn *bus.Channel[bus.RouteDelta]) *Table {
	return &Table{
		byIndex: map[int]*types.Link{},
		byName:  map[string]int{},
		ribIn:   ribIn,
	}
}

// Run consumes the FIB shim's demuxed link/address notifications
// (spec.md §4.1 inbound events) and applies them to the table, the only
// task allowed to mutate it (spec.md §5).
func (t *Table) Run(ctx context.Context, b *bus.Bus) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-b.Links.C:
			if !ok {
				return nil
			}
			switch env.Body.Kind {
			case bus.LinkDelete:
				t.Delete(env.Body.Link.Ifindex)
			default:
				t.Upsert(env.Body.Link)
			}
		case env, ok := <-b.Addrs.C:
			if !ok {
				return nil
			}
			p, err := netip.ParsePrefix(env.Body.Addr)
			if err != nil {
				continue
			}
			if env.Body.Kind == bus.AddrDelete {
				t.DelAddr(env.Body.Ifindex, p)
			} else {
				t.AddAddr(env.Body.Ifindex, p)
			}
		}
	}
}

// Upsert records a link add/change from the FIB shim (spec.md §4.2).
func (t *Table) Upsert(l types.Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byIndex[l.Ifindex]; ok {
		delete(t.byName, old.Name)
	}
	cp := l
	t.byIndex[l.Ifindex] = &cp
	t.byName[l.Name] = l.Ifindex
}

// Delete removes a link by ifindex (kernel notification that it's gone).
// Config addresses persist only at the config layer, not here — once the
// link itself is gone its connected routes are withdrawn.
func (t *Table) Delete(ifindex int) {
	t.mu.Lock()
	l, ok := t.byIndex[ifindex]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.byIndex, ifindex)
	delete(t.byName, l.Name)
	addrs := append(append([]netip.Prefix{}, l.V4Addrs...), l.V6Addrs...)
	t.mu.Unlock()

	for _, a := range addrs {
		t.withdrawConnected(ifindex, a)
	}
}

// ByIndex and ByName are the two lookups spec.md §4.2 requires.
func (t *Table) ByIndex(ifindex int) (types.Link, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	l, ok := t.byIndex[ifindex]
	if !ok {
		return types.Link{}, false
	}
	return *l, true
}

func (t *Table) ByName(name string) (types.Link, bool) {
	t.mu.RLock()
	idx, ok := t.byName[name]
	t.mu.RUnlock()
	if !ok {
		return types.Link{}, false
	}
	return t.ByIndex(idx)
}

// AddAddr attaches a prefix to an interface, rejecting an exact duplicate
// (spec.md §4.2 "a duplicate add is rejected") and emitting a connected-
// route delta to the RIB.
func (t *Table) AddAddr(ifindex int, p netip.Prefix) error {
	t.mu.Lock()
	l, ok := t.byIndex[ifindex]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("link: no such ifindex %d", ifindex)
	}
	list := &l.V4Addrs
	if p.Addr().Is6() {
		list = &l.V6Addrs
	}
	for _, existing := range *list {
		if existing == p {
			t.mu.Unlock()
			return fmt.Errorf("link: duplicate address %s on ifindex %d", p, ifindex)
		}
	}
	*list = append(*list, p)
	t.mu.Unlock()

	prefix, err := types.NewPrefix(p.Masked().Addr(), p.Bits())
	if err != nil {
		return err
	}
	t.ribIn.Send("link", bus.RouteDelta{Route: types.Route{
		Prefix:   prefix,
		Source:   types.SourceConnected,
		Distance: types.SourceConnected.DefaultDistance(),
		Nexthops: []types.Nexthop{{Kind: types.NexthopDirect, Ifindex: ifindex}},
	}})
	return nil
}

// DelAddr detaches a prefix and withdraws its connected route.
func (t *Table) DelAddr(ifindex int, p netip.Prefix) error {
	t.mu.Lock()
	l, ok := t.byIndex[ifindex]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("link: no such ifindex %d", ifindex)
	}
	list := &l.V4Addrs
	if p.Addr().Is6() {
		list = &l.V6Addrs
	}
	for i, existing := range *list {
		if existing == p {
			*list = append((*list)[:i], (*list)[i+1:]...)
			break
		}
	}
	t.mu.Unlock()
	t.withdrawConnected(ifindex, p)
	return nil
}

func (t *Table) withdrawConnected(ifindex int, p netip.Prefix) {
	prefix, err := types.NewPrefix(p.Masked().Addr(), p.Bits())
	if err != nil {
		return
	}
	t.ribIn.Send("link", bus.RouteDelta{Route: types.Route{
		Prefix:   prefix,
		Source:   types.SourceConnected,
		Distance: types.SourceConnected.DefaultDistance(),
		Nexthops: []types.Nexthop{{Kind: types.NexthopDirect, Ifindex: ifindex}},
		Withdraw: true,
	}})
}

// Show returns every link for the `show interface` CLI surface.
func (t *Table) Show() []types.Link {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Link, 0, len(t.byIndex))
	for _, l := range t.byIndex {
		out = append(out, *l)
	}
	return out
}
