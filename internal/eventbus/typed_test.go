package eventbus

import "testing"

type runDone struct {
	id   string
	cost float64
}

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[runDone]()
	a, b := bus.Subscribe(), bus.Subscribe()
	bus.Publish(runDone{id: "r1", cost: 479})
	for _, ch := range []<-chan runDone{a, b} {
		if v := <-ch; v.id != "r1" || v.cost != 479 {
			t.Fatalf("unexpected event %+v", v)
		}
	}
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTyped[int](WithBuffer(2))
	ch := bus.Subscribe()
	for i := 0; i < 5; i++ {
		bus.Publish(i)
	}
	if got := bus.Dropped(); got != 3 {
		t.Fatalf("expected 3 dropped events, got %d", got)
	}
	if v := <-ch; v != 0 {
		t.Fatalf("expected oldest event kept, got %d", v)
	}
}

func TestWithBufferIgnoresNonPositive(t *testing.T) {
	bus := NewTyped[int](WithBuffer(0))
	if cap(bus.Subscribe()) != DefaultBuffer {
		t.Fatalf("expected default buffer")
	}
}

func TestTypedBusUnsubscribeUnknown(t *testing.T) {
	bus := NewTyped[float64]()
	other := make(chan float64)
	bus.Subscribe()
	bus.Unsubscribe(other)
	if bus.Subscribers() != 1 {
		t.Fatalf("unknown channel should not remove subscribers")
	}
}
