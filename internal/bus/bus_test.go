package bus

import (
	"testing"
	"time"
)

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New(4, nil)
	defer b.Close()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: "weather", Action: ActionCreate})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish with no subscribers must not block")
	}
}

func TestPerSubscriberFIFO(t *testing.T) {
	b := New(8, nil)
	defer b.Close()

	sub := b.Subscribe()
	actions := []string{ActionCreate, ActionDelete, ActionRead}
	for _, a := range actions {
		b.Publish(Event{Kind: "weather", Action: a})
	}

	for i, want := range actions {
		select {
		case got := <-sub.Events():
			if got.Action != want {
				t.Fatalf("event %d: expected action %q, got %q", i, want, got.Action)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestLateSubscriberReceivesNothing(t *testing.T) {
	b := New(4, nil)
	defer b.Close()

	b.Publish(Event{Kind: "weather", Action: ActionCreate})

	sub := b.Subscribe()
	select {
	case ev := <-sub.Events():
		t.Fatalf("late subscriber received event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := New(1, nil)
	defer b.Close()

	sub := b.Subscribe()

	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: "weather", Action: ActionCreate})
		b.Publish(Event{Kind: "weather", Action: ActionDelete})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish must not block on a full subscriber buffer")
	}

	// Only the first event fit the buffer.
	got := <-sub.Events()
	if got.Action != ActionCreate {
		t.Fatalf("expected first event, got action %q", got.Action)
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("expected second event to be dropped, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(4, nil)
	defer b.Close()

	sub := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}

	b.Unsubscribe(sub.ID())
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.SubscriberCount())
	}

	select {
	case _, open := <-sub.Events():
		if open {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("expected channel close after unsubscribe")
	}

	// Unsubscribing twice is harmless.
	b.Unsubscribe(sub.ID())
}

func TestCloseDetachesAllSubscribers(t *testing.T) {
	b := New(4, nil)
	sub := b.Subscribe()
	b.Close()

	if _, open := <-sub.Events(); open {
		t.Fatal("expected closed channel after bus close")
	}

	// Publish after close is a no-op.
	b.Publish(Event{Kind: "weather", Action: ActionCreate})
}
