package events

import (
	"context"
	"testing"
	"time"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	if bus == nil {
		t.Fatal("NewBus() returned nil")
	}
	if bus.Notices == nil {
		t.Fatal("Notices channel is nil")
	}
}

func TestBus_PublishReceive(t *testing.T) {
	bus := NewBus()
	go bus.Publish(Notice{Kind: WriteFailed, TeamID: "t1", Message: "could not save"})

	select {
	case n := <-bus.Notices:
		if n.Kind != WriteFailed || n.TeamID != "t1" {
			t.Errorf("received %+v", n)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for notice")
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Notice{Kind: Connection})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full bus")
	}
	if len(bus.Notices) != cap(bus.Notices) {
		t.Errorf("queued = %d, want %d", len(bus.Notices), cap(bus.Notices))
	}
}

func TestNilBusPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(Notice{Kind: Connection, Message: "logged only"})
}

func TestNotice_Retryable(t *testing.T) {
	if (Notice{}).Retryable() {
		t.Error("notice without Retry should not be retryable")
	}
	n := Notice{Retry: func(context.Context) error { return nil }}
	if !n.Retryable() {
		t.Error("notice with Retry should be retryable")
	}
}
