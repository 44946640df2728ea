package bgp

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zebra-rs/zebra-rs/internal/bus"
)

func TestAwaitConnectionPassivePeerWaitsForInbound(t *testing.T) {
	locRIB := NewLocRIB(zap.NewNop().Sugar())
	ch := bus.NewChannel[bus.RouteDelta](16)
	p := NewPeer(Config{LocalAS: 65000, RemoteAS: 65001, Passive: true}, locRIB, ch, zap.NewNop().Sugar())

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan error, 1)
	var got net.Conn
	go func() {
		var err error
		got, err = p.awaitConnection(context.Background())
		done <- err
	}()

	p.AcceptInbound(serverConn)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("awaitConnection returned an error: %v", err)
		}
		if got != serverConn {
			t.Fatalf("expected the accepted connection to be returned")
		}
	case <-time.After(time.Second):
		t.Fatalf("awaitConnection never returned after AcceptInbound")
	}
}

func TestAwaitConnectionPassivePeerHonorsCancellation(t *testing.T) {
	locRIB := NewLocRIB(zap.NewNop().Sugar())
	ch := bus.NewChannel[bus.RouteDelta](16)
	p := NewPeer(Config{LocalAS: 65000, RemoteAS: 65001, Passive: true}, locRIB, ch, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.awaitConnection(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("awaitConnection did not return promptly on cancellation")
	}
}

func TestAcceptInboundDropsWhenAlreadyQueued(t *testing.T) {
	locRIB := NewLocRIB(zap.NewNop().Sugar())
	ch := bus.NewChannel[bus.RouteDelta](16)
	p := NewPeer(Config{LocalAS: 65000, RemoteAS: 65001, Passive: true}, locRIB, ch, zap.NewNop().Sugar())

	_, firstServer := net.Pipe()
	_, secondServer := net.Pipe()
	defer secondServer.Close()

	p.AcceptInbound(firstServer)
	p.AcceptInbound(secondServer) // must be dropped (closed), not block or replace the queued one

	select {
	case conn := <-p.inbound:
		if conn != firstServer {
			t.Fatalf("expected the first accepted connection to win the single slot")
		}
	default:
		t.Fatalf("expected the first connection to be queued")
	}
}
