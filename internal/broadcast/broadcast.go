package broadcast

import (
	"sync"

	"northstar/internal/events"
)

type Broadcaster struct {
	Mu      sync.Mutex
	Clients map[chan events.Notice]bool
	// last holds the most recent notices for late subscribers.
	last []events.Notice
}

const historySize = 20

func NewBroadcaster(bus *events.Bus) *Broadcaster {
	b := &Broadcaster{
		Clients: make(map[chan events.Notice]bool),
	}
	go func() {
		for n := range bus.Notices {
			b.Broadcast(n)
		}
	}()
	return b
}

func (b *Broadcaster) Subscribe() chan events.Notice {
	ch := make(chan events.Notice, 10)
	b.Mu.Lock()
	b.Clients[ch] = true
	b.Mu.Unlock()
	return ch
}

func (b *Broadcaster) Unsubscribe(ch chan events.Notice) {
	b.Mu.Lock()
	delete(b.Clients, ch)
	b.Mu.Unlock()
	close(ch)
}

func (b *Broadcaster) Broadcast(n events.Notice) {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	b.last = append(b.last, n)
	if len(b.last) > historySize {
		b.last = b.last[len(b.last)-historySize:]
	}
	for ch := range b.Clients {
		select {
		case ch <- n:
		default:
			// skip clients with full channels
		}
	}
}

// Recent returns up to historySize of the latest notices, oldest first.
func (b *Broadcaster) Recent() []events.Notice {
	b.Mu.Lock()
	defer b.Mu.Unlock()
	return append([]events.Notice(nil), b.last...)
}
