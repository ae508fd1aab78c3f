package gamestate

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
	"northstar/internal/metrics"
	"northstar/internal/teams"
)

// Dependencies lists the earlier stages whose output stage reads.
func Dependencies(stage int) []int {
	switch stage {
	case 3:
		return []int{1}
	case 4:
		return []int{1, 3}
	}
	return nil
}

// SubscribeScoped replaces the live subscriptions with three for stage:
// meta, players and the stage itself. Earlier stages it depends on, and
// the badges, are fetched once. On the local store everything is fetched.
func (s *Store) SubscribeScoped(ctx context.Context, stage int) error {
	if stage < 1 || stage > gamedata.NumStages {
		return fmt.Errorf("stage %d out of range", stage)
	}
	s.mu.Lock()
	id := s.teamID
	if id == "" {
		s.mu.Unlock()
		return ErrNoTeam
	}
	old := s.unsubs
	s.unsubs = nil
	s.scopeGen++
	gen := s.scopeGen
	s.suppressed = nil
	s.viewing = stage
	s.mu.Unlock()

	for _, u := range old {
		u()
	}

	scoped := []string{teams.MetaPath(id), teams.PlayersPath(id), teams.StagePath(id, stage)}
	once := []string{teams.BadgesPath(id)}
	for _, dep := range Dependencies(stage) {
		once = append(once, teams.StagePath(id, dep))
	}

	b, remote := s.backend()
	if !remote {
		return s.fetch(ctx, b, append(scoped, once...))
	}

	var unsubs []func()
	for _, p := range scoped {
		unsub, err := s.remote.Subscribe(p, s.inbound(gen, p))
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return fmt.Errorf("subscribing to %s: %w", p, err)
		}
		unsubs = append(unsubs, unsub)
	}

	s.mu.Lock()
	if s.scopeGen != gen {
		s.mu.Unlock()
		for _, u := range unsubs {
			u()
		}
		return nil
	}
	s.unsubs = unsubs
	s.mu.Unlock()

	return s.fetch(ctx, b, once)
}

// Refresh re-reads the stages the current stage depends on.
func (s *Store) Refresh(ctx context.Context) error {
	id := s.TeamID()
	if id == "" {
		return ErrNoTeam
	}
	var paths []string
	for _, dep := range Dependencies(s.Viewing()) {
		paths = append(paths, teams.StagePath(id, dep))
	}
	b, _ := s.backend()
	return s.fetch(ctx, b, paths)
}

func (s *Store) fetch(ctx context.Context, b kvstore.PointStore, paths []string) error {
	for _, p := range paths {
		v, err := b.Get(ctx, p)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", p, err)
		}
		if err := s.mirror.Set(ctx, p, v); err != nil {
			return err
		}
	}
	return nil
}

// inbound applies subscription deliveries for path to the mirror. The first
// delivery always applies; later ones arriving within the echo window of a
// local write are held back, and the newest held value per path is applied
// once the window passes with no further local writes. Deliveries for a
// superseded scope are dropped.
func (s *Store) inbound(gen uint64, path string) kvstore.ValueFunc {
	first := true
	return func(v any) {
		s.applyMu.Lock()
		defer s.applyMu.Unlock()

		s.mu.Lock()
		stale := s.scopeGen != gen
		echo := !first && s.opts.EchoWindow > 0 &&
			s.opts.Clock().Sub(s.lastLocalWrite) < s.opts.EchoWindow
		first = false
		switch {
		case stale:
		case echo:
			if s.suppressed == nil {
				s.suppressed = make(map[string]any)
			}
			s.suppressed[path] = v
			s.armEchoFlush()
		default:
			delete(s.suppressed, path)
		}
		s.mu.Unlock()

		if stale {
			return
		}
		if echo {
			metrics.EchoesSuppressed.Inc()
			return
		}
		if err := s.mirror.Set(context.Background(), path, v); err != nil {
			log.Printf("[GameState] Applying update to %s: %v\n", path, err)
		}
	}
}

// armEchoFlush schedules the trailing apply one echo window from now.
// s.mu must be held.
func (s *Store) armEchoFlush() {
	if s.echoTimer == nil {
		s.echoTimer = time.AfterFunc(s.opts.EchoWindow, s.flushSuppressed)
		return
	}
	s.echoTimer.Reset(s.opts.EchoWindow)
}

// flushSuppressed applies the held deliveries. Each one is the latest
// backend value of its path, so applying it cannot move the mirror behind
// the backend.
func (s *Store) flushSuppressed() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	pending := s.suppressed
	s.suppressed = nil
	s.mu.Unlock()

	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := s.mirror.Set(context.Background(), p, pending[p]); err != nil {
			log.Printf("[GameState] Applying held update to %s: %v\n", p, err)
		}
	}
}
