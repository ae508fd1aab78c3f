// Package events carries user-visible notices from the game core to
// whatever presents them.
package events

import (
	"context"
	"log"
)

type Kind string

const (
	// WriteFailed reports a write that exhausted its retries. The notice
	// carries a Retry func that re-issues it.
	WriteFailed Kind = "writeFailed"
	// Connection reports a backend connectivity change.
	Connection Kind = "connection"
	// TeamReset and TeamDeleted report admin actions.
	TeamReset   Kind = "teamReset"
	TeamDeleted Kind = "teamDeleted"
	// StageChanged reports a completed stage or an expired timer.
	StageChanged Kind = "stageChanged"
)

type Notice struct {
	Kind    Kind   `json:"kind"`
	TeamID  string `json:"teamId,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
	// Retry re-issues the failed write. Nil for informational notices.
	Retry func(ctx context.Context) error `json:"-"`
}

func (n Notice) Retryable() bool {
	return n.Retry != nil
}

type Bus struct {
	Notices chan Notice
}

func NewBus() *Bus {
	return &Bus{
		Notices: make(chan Notice, 64),
	}
}

// Publish queues n without blocking. A full bus drops the notice and logs
// it so the failure still leaves a trace.
func (b *Bus) Publish(n Notice) {
	if b == nil {
		log.Printf("[Events] %s: %s\n", n.Kind, n.Message)
		return
	}
	select {
	case b.Notices <- n:
	default:
		log.Printf("[Events] Bus full, dropped %s notice: %s\n", n.Kind, n.Message)
	}
}
