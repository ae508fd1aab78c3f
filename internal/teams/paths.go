package teams

import (
	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
)

const Root = "teams"

func Path(id string) string        { return kvstore.Join(Root, id) }
func MetaPath(id string) string    { return kvstore.Join(Root, id, "meta") }
func PlayersPath(id string) string { return kvstore.Join(Root, id, "players") }
func BadgesPath(id string) string  { return kvstore.Join(Root, id, "badges") }

func PlayerPath(id, playerID string) string {
	return kvstore.Join(Root, id, "players", playerID)
}

func StagePath(id string, stage int) string {
	return kvstore.Join(Root, id, gamedata.StageKey(stage))
}

// SelectionPath is the leaf one player writes their stage 1 proposal to.
func SelectionPath(id string, role gamedata.Role, playerID string) string {
	return kvstore.Join(StagePath(id, 1), string(role), "playerSelections", playerID)
}

func RolePath(id string, role gamedata.Role) string {
	return kvstore.Join(StagePath(id, 1), string(role))
}
