// Package consensus gates stage 1 confirmation on every player in a
// functional role holding the same criteria selection.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"northstar/internal/debounce"
	"northstar/internal/gamedata"
	"northstar/internal/gamestate"
	"northstar/internal/kvstore"
	"northstar/internal/players"
	"northstar/internal/teams"
)

var (
	ErrNoConsensus       = errors.New("players in this role have not agreed on a selection")
	ErrNotInRole         = errors.New("player is not assigned to this role")
	ErrSelectionMismatch = errors.New("confirmed list does not match the agreed selection")
	ErrTooManySelections = errors.New("too many criteria selected")
	ErrUnknownCriterion  = errors.New("unknown criterion")
	ErrInvalidRole       = errors.New("invalid functional role")
)

const DefaultWindow = 200 * time.Millisecond

const flushTimeout = 10 * time.Second

type Engine struct {
	gs        *gamestate.Store
	proposals *debounce.Debouncer[[]string]
}

func New(gs *gamestate.Store, window time.Duration) *Engine {
	e := &Engine{gs: gs}
	e.proposals = debounce.New(window, e.writeProposal)
	return e
}

func (e *Engine) writeProposal(path string, ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := e.gs.Set(ctx, path, ids); err != nil {
		log.Printf("[Consensus] Writing proposal %s: %v\n", path, err)
	}
}

// ProposeSelection records playerID's current selection for role. The
// mirror changes at once; the backend write to the player's own leaf is
// debounced. A change while confirmations exist resets them in the same
// write as the new selection.
func (e *Engine) ProposeSelection(ctx context.Context, role gamedata.Role, playerID string, ids []string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if limit := e.gs.Config().MaxCriteria; limit > 0 && len(ids) > limit {
		return fmt.Errorf("%w: %d of at most %d", ErrTooManySelections, len(ids), limit)
	}
	for _, id := range ids {
		if _, ok := gamedata.CriterionByID(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCriterion, id)
		}
	}
	rec := e.gs.Record()
	if !inRole(rec, role, playerID) {
		return ErrNotInRole
	}

	teamID := e.gs.TeamID()
	sel := rec.Stage1[role]
	changed := Key(sel.PlayerSelections[playerID]) != Key(ids)
	path := teams.SelectionPath(teamID, role, playerID)
	value := append([]string(nil), ids...)

	if changed && len(sel.ConfirmedBy) > 0 {
		// The new selection goes out with the reset so no sibling sees
		// cleared confirmations next to the old selection.
		e.proposals.Drop(path)
		rp := teams.RolePath(teamID, role)
		return e.gs.Apply(ctx, "reset confirmations", map[string]any{
			path:                                    value,
			kvstore.Join(rp, "confirmedBy"):         nil,
			kvstore.Join(rp, "confirmedSelections"): nil,
		})
	}

	if err := e.gs.ApplyLocal(ctx, map[string]any{path: value}); err != nil {
		return err
	}
	e.proposals.Push(path, value)
	return nil
}

// HasConsensus reports whether every player in role holds the same
// non-empty selection. A role with at most one player always agrees.
func HasConsensus(rec teams.Record, role gamedata.Role) bool {
	ids := players.Roster(rec.Players).InRole(role)
	if len(ids) <= 1 {
		return true
	}
	sel := rec.Stage1[role]
	var want string
	for i, pid := range ids {
		got := sel.PlayerSelections[pid]
		if len(got) == 0 {
			return false
		}
		k := Key(got)
		if i == 0 {
			want = k
		} else if k != want {
			return false
		}
	}
	return true
}

func (e *Engine) HasConsensus(role gamedata.Role) bool {
	return HasConsensus(e.gs.Record(), role)
}

// Confirm locks in list for role on behalf of playerID. confirmedBy and
// confirmedSelections are written together.
func (e *Engine) Confirm(ctx context.Context, role gamedata.Role, playerID string, list []string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	rec := e.gs.Record()
	if !inRole(rec, role, playerID) {
		return ErrNotInRole
	}
	if !HasConsensus(rec, role) {
		return ErrNoConsensus
	}
	sel := rec.Stage1[role]
	if len(list) == 0 || Key(list) != Key(sel.PlayerSelections[playerID]) {
		return ErrSelectionMismatch
	}

	teamID := e.gs.TeamID()
	e.proposals.Flush(teams.SelectionPath(teamID, role, playerID))

	confirmedBy := append([]string(nil), sel.ConfirmedBy...)
	if !contains(confirmedBy, playerID) {
		confirmedBy = append(confirmedBy, playerID)
	}
	rp := teams.RolePath(teamID, role)
	return e.gs.Apply(ctx, "confirm selection", map[string]any{
		kvstore.Join(rp, "confirmedBy"):         confirmedBy,
		kvstore.Join(rp, "confirmedSelections"): normalized(list),
	})
}

// AllRolesConverged reports whether every role with players has been
// confirmed by all of them. Roles nobody holds are skipped.
func AllRolesConverged(rec teams.Record) bool {
	for role, ids := range players.Roster(rec.Players).ByRole() {
		confirmed := rec.Stage1[role].ConfirmedBy
		for _, pid := range ids {
			if !contains(confirmed, pid) {
				return false
			}
		}
	}
	return true
}

func (e *Engine) AllRolesConverged() bool {
	return AllRolesConverged(e.gs.Record())
}

// SelectedCriteria is the union of every role's confirmed selection.
func SelectedCriteria(rec teams.Record) []string {
	seen := make(map[string]bool)
	var out []string
	for _, role := range gamedata.Roles {
		for _, id := range rec.Stage1[role].ConfirmedSelections {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Close writes every pending proposal now.
func (e *Engine) Close() {
	e.proposals.Close()
}

// Key is the order-independent comparison key of a selection.
func Key(ids []string) string {
	return strings.Join(normalized(ids), ",")
}

func normalized(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func inRole(rec teams.Record, role gamedata.Role, playerID string) bool {
	p, ok := rec.Players[playerID]
	return ok && p.FunctionalRole == role
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
