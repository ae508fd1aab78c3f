// Package players answers questions about a team's roster.
package players

import (
	"sort"

	"northstar/internal/gamedata"
	"northstar/internal/teams"
)

type Roster map[string]teams.Player

func (r Roster) Count() int {
	return len(r)
}

func (r Roster) Has(id string) bool {
	_, ok := r[id]
	return ok
}

// Full reports whether no further player may join.
func (r Roster) Full(capacity int) bool {
	return len(r) >= capacity
}

// InRole returns the ids of players holding role, sorted.
func (r Roster) InRole(role gamedata.Role) []string {
	var ids []string
	for id, p := range r {
		if p.FunctionalRole == role {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ByRole groups assigned players by functional role. Unassigned players
// are left out.
func (r Roster) ByRole() map[gamedata.Role][]string {
	out := make(map[gamedata.Role][]string)
	for _, role := range gamedata.Roles {
		if ids := r.InRole(role); len(ids) > 0 {
			out[role] = ids
		}
	}
	return out
}

// Unassigned returns players with no functional role yet, sorted.
func (r Roster) Unassigned() []string {
	var ids []string
	for id, p := range r {
		if !p.FunctionalRole.Valid() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// MissingRoles lists roles nobody holds.
func (r Roster) MissingRoles() []gamedata.Role {
	var out []gamedata.Role
	for _, role := range gamedata.Roles {
		if len(r.InRole(role)) == 0 {
			out = append(out, role)
		}
	}
	return out
}

// Commander returns the id of the first player with the commander game
// role, if any.
func (r Roster) Commander() (string, bool) {
	var ids []string
	for id, p := range r {
		if p.GameRole == gamedata.Commander {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	return ids[0], true
}

// NewCrew builds the entry for a player joining an existing team.
func NewCrew(nowMillis int64) teams.Player {
	return teams.Player{GameRole: gamedata.Crew, JoinedAt: nowMillis, LastActive: nowMillis}
}
