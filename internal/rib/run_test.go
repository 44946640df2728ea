package rib

import (
	"context"
	"testing"
	"time"

	"github.com/zebra-rs/zebra-rs/internal/bus"
	"github.com/zebra-rs/zebra-rs/internal/types"
)

// TestRunConsumesRIBIn exercises the single select loop that makes the
// RIB mutable only through the bus, feeding a connected-route delta
// through b.RIBIn and checking it lands in the trie.
func TestRunConsumesRIBIn(t *testing.T) {
	b := bus.New()
	r := New(b.FIBOut, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, b) }()

	b.RIBIn.Send("static", bus.RouteDelta{Route: connectedRoute("10.0.0.0/24", 1)})

	deadline := time.After(time.Second)
	for {
		if e, ok := r.LongestMatch(types.FamilyIPv4, types.MustPrefix("10.0.0.0/24").Addr()); ok {
			if len(e.Selected) == 1 {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatalf("route never appeared in the RIB after being sent on RIBIn")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("expected Run to return context.Canceled on shutdown, got %v", err)
	}
}

// TestRunConsumesKernelNotifications checks kernel-sourced route events
// demuxed by the FIB shim are tagged types.SourceKernel and honor the
// Delete flag as a withdraw.
func TestRunConsumesKernelNotifications(t *testing.T) {
	b := bus.New()
	r := New(b.FIBOut, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, b)

	route := connectedRoute("192.0.2.0/24", 2)
	route.Source = types.SourceKernel
	b.Kernel.Send("fib", bus.KernelRouteEvent{Route: route})

	deadline := time.After(time.Second)
	for {
		if e, ok := r.LongestMatch(types.FamilyIPv4, types.MustPrefix("192.0.2.0/24").Addr()); ok && len(e.Selected) == 1 {
			if e.Selected[0].Source != types.SourceKernel {
				t.Fatalf("expected kernel-sourced route, got %+v", e.Selected[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("kernel route never appeared in the RIB")
		case <-time.After(time.Millisecond):
		}
	}
}
