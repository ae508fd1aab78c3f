// Package teams defines the shape of a team record as it is stored, and
// where each part of it lives.
package teams

import (
	"time"

	"northstar/internal/gamedata"
	"northstar/internal/kvstore"
)

type Timer struct {
	StartedAt       int64 `json:"startedAt"`
	DurationMinutes int   `json:"durationMinutes"`
	TargetStage     int   `json:"targetStage"`
}

// Deadline is when the timer runs out.
func (t Timer) Deadline() time.Time {
	return time.UnixMilli(t.StartedAt).Add(time.Duration(t.DurationMinutes) * time.Minute)
}

type Meta struct {
	TeamName      string `json:"teamName"`
	CreatedAt     int64  `json:"createdAt"`
	CurrentStage  int    `json:"currentStage"`
	UnlockedStage int    `json:"unlockedStage"`
	Score         int    `json:"score"`
	Paused        bool   `json:"paused"`
	PausedAt      int64  `json:"pausedAt,omitempty"`
	Locked        bool   `json:"locked"`
	Started       bool   `json:"started"`
	Timer         *Timer `json:"timer,omitempty"`
}

type Player struct {
	GameRole       gamedata.GameRole `json:"gameRole"`
	FunctionalRole gamedata.Role     `json:"functionalRole,omitempty"`
	JoinedAt       int64             `json:"joinedAt"`
	LastActive     int64             `json:"lastActive"`
}

type RoleSelection struct {
	PlayerSelections    map[string]kvstore.List[string] `json:"playerSelections,omitempty"`
	ConfirmedSelections kvstore.List[string]            `json:"confirmedSelections,omitempty"`
	ConfirmedBy         kvstore.List[string]            `json:"confirmedBy,omitempty"`
}

type Stage1 map[gamedata.Role]RoleSelection

type Task struct {
	Assignees map[string]bool `json:"assignees,omitempty"`
	Done      map[string]bool `json:"done,omitempty"`
}

type Stage2 struct {
	Tasks map[string]Task `json:"tasks,omitempty"`
	// Completed maps task id to completion time in unix milliseconds.
	Completed  map[string]int64 `json:"completed,omitempty"`
	Penalties  map[string]int   `json:"penalties,omitempty"`
	RetryQueue map[string]bool  `json:"retryQueue,omitempty"`
}

type AskedQuestion struct {
	Asked bool `json:"asked"`
	Cost  int  `json:"cost"`
}

// Plan maps step id to test id to timepoint id to sample quantity.
type Plan map[string]map[string]map[string]int

type Stage3 struct {
	Plan         Plan                     `json:"plan,omitempty"`
	Conversation map[string]AskedQuestion `json:"operator-conversation,omitempty"`
}

type CriterionResult struct {
	Criterion string            `json:"criterion"`
	Claimed   gamedata.Verdict  `json:"claimed"`
	Truth     gamedata.Verdict  `json:"truth"`
	Points    int               `json:"points"`
	Error     string            `json:"error,omitempty"`
	Severity  gamedata.Severity `json:"severity,omitempty"`
}

type Result struct {
	Score       int                           `json:"score"`
	Coverage    float64                       `json:"coverage"`
	Criteria    kvstore.List[CriterionResult] `json:"criteria,omitempty"`
	Worst       gamedata.Severity             `json:"worst,omitempty"`
	Narrative   string                        `json:"narrative"`
	SubmittedBy string                        `json:"submittedBy"`
	SubmittedAt int64                         `json:"submittedAt"`
}

type Stage4 struct {
	Judgments  map[string]gamedata.Verdict `json:"judgments,omitempty"`
	Agreements map[string]bool             `json:"agreements,omitempty"`
	Seed       *uint32                     `json:"seed,omitempty"`
	Result     *Result                     `json:"result,omitempty"`
}

type Record struct {
	Meta    Meta              `json:"meta"`
	Players map[string]Player `json:"players,omitempty"`
	Stage1  Stage1            `json:"stage1,omitempty"`
	Stage2  Stage2            `json:"stage2,omitempty"`
	Stage3  Stage3            `json:"stage3,omitempty"`
	Stage4  Stage4            `json:"stage4,omitempty"`
	// Badges maps stage key to the time it was completed.
	Badges map[string]int64 `json:"badges,omitempty"`
}

// NewRecord builds a fresh record with creatorID as its only player, in the
// commander role.
func NewRecord(name string, now time.Time, creatorID string) Record {
	ms := now.UnixMilli()
	return Record{
		Meta: Meta{
			TeamName:      name,
			CreatedAt:     ms,
			CurrentStage:  1,
			UnlockedStage: 1,
		},
		Players: map[string]Player{
			creatorID: {GameRole: gamedata.Commander, JoinedAt: ms, LastActive: ms},
		},
	}
}

// Reset returns r with all progress dropped. Name, creation time and the
// roster survive; functional roles are kept.
func Reset(r Record) Record {
	fresh := Record{
		Meta: Meta{
			TeamName:      r.Meta.TeamName,
			CreatedAt:     r.Meta.CreatedAt,
			CurrentStage:  1,
			UnlockedStage: 1,
			Locked:        r.Meta.Locked,
		},
		Players: r.Players,
	}
	return fresh
}

// Decode reads a stored record. Missing parts decode as zero values.
func Decode(v any) (Record, error) {
	var r Record
	if v == nil {
		return r, nil
	}
	err := kvstore.Decode(v, &r)
	return r, err
}
