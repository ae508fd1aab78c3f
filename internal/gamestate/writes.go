package gamestate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"northstar/internal/events"
	"northstar/internal/kvstore"
	"northstar/internal/metrics"
	"northstar/internal/retry"
	"northstar/internal/teams"
)

// UpdateMeta shallow-merges fields into meta.
func (s *Store) UpdateMeta(ctx context.Context, fields kvstore.Object) error {
	id := s.TeamID()
	if id == "" {
		return ErrNoTeam
	}
	updates, err := kvstore.Expand(teams.MetaPath(id), fields)
	if err != nil {
		return err
	}
	return s.Apply(ctx, "update meta", updates)
}

// UpdateStage shallow-merges fields into stage n.
func (s *Store) UpdateStage(ctx context.Context, stage int, fields kvstore.Object) error {
	id := s.TeamID()
	if id == "" {
		return ErrNoTeam
	}
	updates, err := kvstore.Expand(teams.StagePath(id, stage), fields)
	if err != nil {
		return err
	}
	return s.Apply(ctx, fmt.Sprintf("update stage %d", stage), updates)
}

// Set writes one path inside the team record.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	return s.Apply(ctx, "set "+path, map[string]any{path: v})
}

// Apply commits updates, all inside the current team record, to the mirror
// and then to the backend as one multi-path write. Transient backend
// failures are retried; when retries run out a retryable notice is
// published and ErrWriteFailed returned. The mirror keeps the local value.
func (s *Store) Apply(ctx context.Context, label string, updates map[string]any) error {
	id := s.TeamID()
	if id == "" {
		return ErrNoTeam
	}
	root := teams.Path(id)
	for p := range updates {
		if !kvstore.Contains(root, kvstore.Clean(p)) {
			return fmt.Errorf("%w: %s", ErrOutsideTeam, p)
		}
	}
	if _, err := kvstore.SortedPaths(updates); err != nil {
		return err
	}

	s.markLocalWrite()
	if err := s.mirror.MultiPathUpdate(ctx, updates); err != nil {
		return err
	}
	return s.push(ctx, id, label, updates)
}

// ApplyLocal commits updates to the mirror only. Callers that coalesce
// backend writes use it to show a change before the write goes out.
func (s *Store) ApplyLocal(ctx context.Context, updates map[string]any) error {
	id := s.TeamID()
	if id == "" {
		return ErrNoTeam
	}
	root := teams.Path(id)
	for p := range updates {
		if !kvstore.Contains(root, kvstore.Clean(p)) {
			return fmt.Errorf("%w: %s", ErrOutsideTeam, p)
		}
	}
	s.markLocalWrite()
	return s.mirror.MultiPathUpdate(ctx, updates)
}

func (s *Store) markLocalWrite() {
	s.mu.Lock()
	s.lastLocalWrite = s.opts.Clock()
	if len(s.suppressed) > 0 {
		s.armEchoFlush()
	}
	s.mu.Unlock()
}

func (s *Store) push(ctx context.Context, teamID, label string, updates map[string]any) error {
	b, _ := s.backend()
	err := s.opts.Retry.Do(ctx, label, func(ctx context.Context) error {
		err := b.MultiPathUpdate(ctx, updates)
		if err != nil && isValidation(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if isValidation(err) || errors.Is(err, context.Canceled) {
		return err
	}

	metrics.WriteFailures.Inc()
	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	log.Printf("[GameState] %s failed after retries: %v\n", label, err)
	s.opts.Bus.Publish(events.Notice{
		Kind:    events.WriteFailed,
		TeamID:  teamID,
		Path:    strings.Join(paths, ","),
		Message: fmt.Sprintf("Your change (%s) could not be saved. Check your connection and try again.", label),
		Retry: func(ctx context.Context) error {
			return s.push(ctx, teamID, label, updates)
		},
	})
	return fmt.Errorf("%w: %s: %v", ErrWriteFailed, label, err)
}
