package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	rid := "r1"
	ch := b.Subscribe(rid)

	evt := Event{Type: EventRunProgress, Data: map[string]any{"x": 1}}
	b.Publish(rid, evt)
	b.Publish("other", Event{Type: "ignored"})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["x"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(rid, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// publishing to a run without subscribers is a no-op
	b.Publish(rid, evt)
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })

	ch := b.Subscribe("r1")
	b.Publish("r1", Event{Type: EventRunCompleted, Data: map[string]any{"cost": 12.5}})

	select {
	case got := <-ch:
		if got.Type != EventRunCompleted || got.Data["cost"].(float64) != 12.5 {
			t.Fatalf("unexpected event %+v", got)
		}
		if !got.Terminal() {
			t.Fatalf("completed event should be terminal")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe("r1", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected event after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestNewRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not-a-url"); err == nil {
		t.Fatal("expected parse error")
	}
}
