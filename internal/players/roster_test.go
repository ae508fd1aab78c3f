package players

import (
	"reflect"
	"testing"

	"northstar/internal/gamedata"
	"northstar/internal/teams"
)

func testRoster() Roster {
	return Roster{
		"p1": {GameRole: gamedata.Commander, FunctionalRole: gamedata.RoleA},
		"p2": {GameRole: gamedata.Crew, FunctionalRole: gamedata.RoleA},
		"p3": {GameRole: gamedata.Crew, FunctionalRole: gamedata.RoleC},
		"p4": {GameRole: gamedata.Crew},
	}
}

func TestInRole(t *testing.T) {
	r := testRoster()
	if got := r.InRole(gamedata.RoleA); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("InRole(A) = %v", got)
	}
	if got := r.InRole(gamedata.RoleB); got != nil {
		t.Errorf("InRole(B) = %v, want none", got)
	}
}

func TestByRole(t *testing.T) {
	got := testRoster().ByRole()
	if len(got) != 2 {
		t.Fatalf("ByRole() has %d roles, want 2", len(got))
	}
	if !reflect.DeepEqual(got[gamedata.RoleC], []string{"p3"}) {
		t.Errorf("ByRole()[C] = %v", got[gamedata.RoleC])
	}
}

func TestUnassignedAndMissing(t *testing.T) {
	r := testRoster()
	if got := r.Unassigned(); !reflect.DeepEqual(got, []string{"p4"}) {
		t.Errorf("Unassigned() = %v", got)
	}
	if got := r.MissingRoles(); !reflect.DeepEqual(got, []gamedata.Role{gamedata.RoleB, gamedata.RoleD}) {
		t.Errorf("MissingRoles() = %v", got)
	}
}

func TestFull(t *testing.T) {
	r := Roster{}
	for i := range 12 {
		r[string(rune('a'+i))] = teams.Player{}
	}
	if !r.Full(12) {
		t.Error("12 of 12 should be full")
	}
	if r.Full(13) {
		t.Error("12 of 13 should not be full")
	}
}

func TestCommander(t *testing.T) {
	id, ok := testRoster().Commander()
	if !ok || id != "p1" {
		t.Errorf("Commander() = %q, %v", id, ok)
	}
	if _, ok := (Roster{"x": NewCrew(1)}).Commander(); ok {
		t.Error("crew-only roster has no commander")
	}
}
