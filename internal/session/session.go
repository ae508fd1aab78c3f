// Package session holds the per-device identity handed to the game state
// store.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"northstar/internal/kvstore"
)

const (
	PlayerIDPath = "device/playerId"
	TestModePath = "device/testMode"
)

type Session struct {
	PlayerID string
	// TestMode makes every stage viewable regardless of unlock state.
	TestMode bool
}

// Load reads the device session from local, creating and persisting a
// player id on first use so the same device keeps its identity.
func Load(ctx context.Context, local kvstore.PointStore) (Session, error) {
	v, err := local.Get(ctx, PlayerIDPath)
	if err != nil {
		return Session{}, fmt.Errorf("reading player id: %w", err)
	}
	id, _ := v.(string)
	if id == "" {
		id = uuid.New().String()
		if err := local.Set(ctx, PlayerIDPath, id); err != nil {
			return Session{}, fmt.Errorf("storing player id: %w", err)
		}
	}

	tm, err := local.Get(ctx, TestModePath)
	if err != nil {
		return Session{}, fmt.Errorf("reading test mode: %w", err)
	}
	testMode, _ := tm.(bool)
	return Session{PlayerID: id, TestMode: testMode}, nil
}

// SetTestMode persists the test-mode flag for this device.
func SetTestMode(ctx context.Context, local kvstore.PointStore, on bool) error {
	if !on {
		return local.Remove(ctx, TestModePath)
	}
	return local.Set(ctx, TestModePath, true)
}
