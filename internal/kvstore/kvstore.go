// Package kvstore defines the hierarchical key-value contract the game core
// is written against, plus an in-process implementation.
//
// Values are JSON-compatible: objects (map[string]any), strings, float64
// numbers and booleans. Writing nil removes a path. Lists are stored as
// objects keyed by index, so readers must go through CoerceList or List[T]
// when they expect an ordered sequence back.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured reports that no remote backend is available. Callers
	// fall back to a local store; it is never shown to players.
	ErrNotConfigured = errors.New("kvstore: backend not configured")
	// ErrUnavailable reports a transient backend failure.
	ErrUnavailable = errors.New("kvstore: backend unavailable")
	// ErrInvalidPath reports a malformed path or key.
	ErrInvalidPath = errors.New("kvstore: invalid path")
	// ErrOverlappingPaths reports a multi-path update where one path
	// contains another.
	ErrOverlappingPaths = errors.New("kvstore: overlapping paths in multi-path update")
	// ErrClosed reports use of a store after Close.
	ErrClosed = errors.New("kvstore: store closed")
)

// Object is a shallow set of child values written by Update.
type Object = map[string]any

// ValueFunc receives the value at a subscribed path, nil when absent.
type ValueFunc func(value any)

// ConnectionFunc receives connection state transitions.
type ConnectionFunc func(connected bool)

// PointStore is the point-in-time part of the contract.
type PointStore interface {
	// Get returns the value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (any, error)
	// Set overwrites path with value.
	Set(ctx context.Context, path string, value any) error
	// Update replaces each named child of path, leaving siblings alone.
	Update(ctx context.Context, path string, fields Object) error
	// MultiPathUpdate commits every path/value pair together or not at all.
	MultiPathUpdate(ctx context.Context, updates map[string]any) error
	// Remove deletes path and everything below it.
	Remove(ctx context.Context, path string) error
}

// Store adds live, path-scoped subscriptions to PointStore.
type Store interface {
	PointStore
	// Subscribe delivers the current value at path, then every change at,
	// above or below it. Deliveries for one subscription are ordered.
	Subscribe(path string, fn ValueFunc) (unsubscribe func(), err error)
	// SubscribeConnectionState delivers the current state, then transitions.
	SubscribeConnectionState(fn ConnectionFunc) (unsubscribe func())
}

// Expand turns a shallow Update into the equivalent multi-path map.
func Expand(path string, fields Object) (map[string]any, error) {
	if _, err := Split(path); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if err := ValidKey(k); err != nil {
			return nil, err
		}
		out[Join(path, k)] = v
	}
	return out, nil
}
