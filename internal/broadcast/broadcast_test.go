package broadcast

import (
	"testing"
	"time"

	"northstar/internal/events"
)

func TestNewBroadcaster(t *testing.T) {
	bus := events.NewBus()
	b := NewBroadcaster(bus)
	if b == nil {
		t.Fatal("NewBroadcaster() returned nil")
	}
}

func TestBroadcaster_SubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster(events.NewBus())

	ch := b.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() returned nil")
	}

	b.Mu.Lock()
	if len(b.Clients) != 1 {
		t.Errorf("clients count = %d, want 1", len(b.Clients))
	}
	b.Mu.Unlock()

	b.Unsubscribe(ch)

	b.Mu.Lock()
	if len(b.Clients) != 0 {
		t.Errorf("clients count after unsubscribe = %d, want 0", len(b.Clients))
	}
	b.Mu.Unlock()
}

func TestBroadcaster_ForwardsBusNotices(t *testing.T) {
	bus := events.NewBus()
	b := NewBroadcaster(bus)

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	bus.Publish(events.Notice{Kind: events.TeamReset, TeamID: "t1", Message: "reset"})

	for i, ch := range []chan events.Notice{ch1, ch2} {
		select {
		case n := <-ch:
			if n.Kind != events.TeamReset || n.TeamID != "t1" {
				t.Errorf("ch%d got %+v", i+1, n)
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("ch%d timed out", i+1)
		}
	}
}

func TestBroadcaster_SkipsFullChannels(t *testing.T) {
	b := NewBroadcaster(events.NewBus())
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			b.Broadcast(events.Notice{Kind: events.Connection})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Broadcast blocked on a full client channel")
	}
	if len(ch) != 10 {
		t.Errorf("channel len = %d, want 10", len(ch))
	}
}

func TestBroadcaster_Recent(t *testing.T) {
	b := NewBroadcaster(events.NewBus())
	for i := 0; i < historySize+5; i++ {
		b.Broadcast(events.Notice{Kind: events.Connection, Message: string(rune('a' + i))})
	}
	got := b.Recent()
	if len(got) != historySize {
		t.Fatalf("Recent() len = %d, want %d", len(got), historySize)
	}
	if got[0].Message != string(rune('a'+5)) {
		t.Errorf("oldest = %q, want %q", got[0].Message, string(rune('a'+5)))
	}
}
