package gamestate

import (
	"context"
	"fmt"
	"log"

	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
	"northstar/internal/players"
	"northstar/internal/teams"
)

// CreateTeam registers a new team with the caller as its commander.
func (s *Store) CreateTeam(ctx context.Context, name string) (string, error) {
	id, err := teams.NormalizeID(name)
	if err != nil {
		return "", err
	}
	rec := teams.NewRecord(name, s.Now(), s.session.PlayerID)

	err = s.withFallback(ctx, "create team", func(b kvstore.PointStore) error {
		existing, err := b.Get(ctx, teams.MetaPath(id))
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		}
		return b.Set(ctx, teams.Path(id), rec)
	})
	if err != nil {
		return "", err
	}
	log.Printf("[GameState] Created team %s\n", id)
	s.adopt(ctx, id, rec)
	return id, nil
}

// JoinTeam adds the caller to an existing team. Rejoining is idempotent;
// the join that reaches capacity locks the team.
func (s *Store) JoinTeam(ctx context.Context, name string) (string, error) {
	id, err := teams.NormalizeID(name)
	if err != nil {
		return "", err
	}
	pid := s.session.PlayerID
	capacity := s.opts.Config.TeamCapacity
	now := s.Now().UnixMilli()

	var rec teams.Record
	err = s.withFallback(ctx, "join team", func(b kvstore.PointStore) error {
		v, err := b.Get(ctx, teams.Path(id))
		if err != nil {
			return err
		}
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if rec, err = teams.Decode(v); err != nil {
			return err
		}
		roster := players.Roster(rec.Players)

		if roster.Has(pid) {
			p := rec.Players[pid]
			p.LastActive = now
			rec.Players[pid] = p
			return b.Set(ctx, kvstore.Join(teams.PlayerPath(id, pid), "lastActive"), now)
		}
		if roster.Full(capacity) || rec.Meta.Locked {
			return fmt.Errorf("%w: %s has %d of %d players", ErrFull, id, roster.Count(), capacity)
		}

		p := players.NewCrew(now)
		updates := map[string]any{teams.PlayerPath(id, pid): p}
		if roster.Count()+1 >= capacity {
			updates[kvstore.Join(teams.MetaPath(id), "locked")] = true
			rec.Meta.Locked = true
		}
		if err := b.MultiPathUpdate(ctx, updates); err != nil {
			return err
		}
		if rec.Players == nil {
			rec.Players = make(map[string]teams.Player)
		}
		rec.Players[pid] = p
		return nil
	})
	if err != nil {
		return "", err
	}
	log.Printf("[GameState] Player %s joined team %s\n", pid, id)
	s.adopt(ctx, id, rec)
	return id, nil
}

// withFallback runs op on the current backend. A non-validation failure on
// the remote store switches to the local store and runs op again there.
func (s *Store) withFallback(ctx context.Context, label string, op func(kvstore.PointStore) error) error {
	b, remote := s.backend()
	err := op(b)
	if err == nil || !remote || isValidation(err) {
		return err
	}
	s.fallBack(label, err)
	local, _ := s.backend()
	return op(local)
}

func (s *Store) adopt(ctx context.Context, id string, rec teams.Record) {
	s.mu.Lock()
	s.teamID = id
	s.mu.Unlock()
	if err := s.mirror.Set(ctx, teams.Path(id), rec); err != nil {
		log.Printf("[GameState] Mirroring team %s: %v\n", id, err)
	}
}

// AssignRole sets the caller's functional role.
func (s *Store) AssignRole(ctx context.Context, role gamedata.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	id := s.TeamID()
	if id == "" {
		return ErrNoTeam
	}
	pp := teams.PlayerPath(id, s.session.PlayerID)
	return s.Apply(ctx, "assign role", map[string]any{
		kvstore.Join(pp, "functionalRole"): string(role),
		kvstore.Join(pp, "lastActive"):     s.Now().UnixMilli(),
	})
}

// ResetTeam overwrites a team with a fresh record, keeping its name,
// creation time and roster. Only for administrative use: it replaces the
// whole record.
func ResetTeam(ctx context.Context, b kvstore.PointStore, id string) error {
	v, err := b.Get(ctx, teams.Path(id))
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec, err := teams.Decode(v)
	if err != nil {
		return err
	}
	return b.Set(ctx, teams.Path(id), teams.Reset(rec))
}

// DeleteTeam removes a team record entirely.
func DeleteTeam(ctx context.Context, b kvstore.PointStore, id string) error {
	v, err := b.Get(ctx, teams.MetaPath(id))
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.Remove(ctx, teams.Path(id))
}
