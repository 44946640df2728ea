package bus

import "testing"

func TestSendAssignsMonotonicEpoch(t *testing.T) {
	ch := NewChannel[int](4)
	ch.Send("a", 1)
	ch.Send("a", 2)

	first := <-ch.C
	second := <-ch.C
	if first.Epoch != 1 || second.Epoch != 2 {
		t.Fatalf("expected epochs 1 then 2, got %d then %d", first.Epoch, second.Epoch)
	}
	if first.Sender != "a" || first.Body != 1 {
		t.Fatalf("unexpected envelope: %+v", first)
	}
}

func TestSendAfterCloseIsNoop(t *testing.T) {
	ch := NewChannel[int](1)
	ch.Close()
	ch.Send("a", 1) // must not panic sending on a closed channel

	select {
	case _, ok := <-ch.C:
		if ok {
			t.Fatalf("expected no value delivered after close")
		}
	default:
		t.Fatalf("expected the channel to read as closed immediately")
	}
}

func TestDrainDiscardsBufferedWithoutBlocking(t *testing.T) {
	ch := NewChannel[int](4)
	ch.Send("a", 1)
	ch.Send("a", 2)
	ch.Drain()

	select {
	case v, ok := <-ch.C:
		t.Fatalf("expected nothing buffered after Drain, got %+v ok=%v", v, ok)
	default:
	}
}

func TestBusNewAndShutdown(t *testing.T) {
	b := New()
	b.RIBIn.Send("static", RouteDelta{})
	b.Shutdown()

	select {
	case _, ok := <-b.RIBIn.C:
		if ok {
			t.Fatalf("expected RIBIn to be drained and closed")
		}
	default:
		t.Fatalf("expected RIBIn's channel to read as closed after Shutdown")
	}
}
