package dppi

import "testing"

type countingCallback struct {
	calls  []uint32
	noParm int
}

func (c *countingCallback) Invoke(param uint32) { c.calls = append(c.calls, param) }
func (c *countingCallback) InvokeNoParam()       { c.noParm++ }

func TestEventSignalRequiresChannelEnabled(t *testing.T) {
	f := New("dppic", 0, 16, 2)
	cb := &countingCallback{}
	if err := f.Subscribe(7, cb, NoParam()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	f.EventSignal(7)
	if cb.noParm != 0 {
		t.Fatalf("disabled channel must not signal, got %d calls", cb.noParm)
	}
	f.EnableChannels(1 << 7)
	f.EventSignal(7)
	if cb.noParm != 1 {
		t.Fatalf("expected one no-param call, got %d", cb.noParm)
	}
}

func TestEventSignalOrderAndDuplicateRejection(t *testing.T) {
	f := New("dppic", 0, 4, 0)
	f.EnableChannels(1 << 0)
	a := &countingCallback{}
	b := &countingCallback{}
	if err := f.Subscribe(0, a, WithParam(1)); err != nil {
		t.Fatal(err)
	}
	if err := f.Subscribe(0, b, WithParam(2)); err != nil {
		t.Fatal(err)
	}
	if err := f.Subscribe(0, a, WithParam(1)); err == nil {
		t.Fatalf("expected duplicate subscription to be rejected")
	}
	f.EventSignal(0)
	if len(a.calls) != 1 || a.calls[0] != 1 {
		t.Fatalf("a.calls = %v", a.calls)
	}
	if len(b.calls) != 1 || b.calls[0] != 2 {
		t.Fatalf("b.calls = %v", b.calls)
	}
}

func TestSubscribeUnsubscribeRoundTrip(t *testing.T) {
	f := New("dppic", 0, 4, 0)
	cb := &countingCallback{}
	if err := f.Subscribe(2, cb, NoParam()); err != nil {
		t.Fatal(err)
	}
	before := f.SubscriberCount(2)
	if err := f.Unsubscribe(2, cb, NoParam()); err != nil {
		t.Fatal(err)
	}
	if err := f.Subscribe(2, cb, NoParam()); err != nil {
		t.Fatal(err)
	}
	after := f.SubscriberCount(2)
	if before != after {
		t.Fatalf("subscriber count changed across subscribe/unsubscribe/subscribe: %d vs %d", before, after)
	}
}

func TestCapacityGrowsInFixedQuanta(t *testing.T) {
	f := New("dppic", 0, 1, 0)
	cb := &countingCallback{}
	for i := 0; i < growthQuantum+1; i++ {
		p := WithParam(uint32(i))
		if err := f.Subscribe(0, cb, p); err != nil {
			t.Fatal(err)
		}
	}
	if f.Capacity(0)%growthQuantum != 0 {
		t.Fatalf("capacity %d is not a multiple of the growth quantum", f.Capacity(0))
	}
	if f.Capacity(0) < f.SubscriberCount(0) {
		t.Fatalf("capacity %d smaller than subscriber count %d", f.Capacity(0), f.SubscriberCount(0))
	}
}
