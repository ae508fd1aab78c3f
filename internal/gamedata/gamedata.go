// Package gamedata holds the static content of a session: roles, the
// success-criteria catalog, the trial process with its tolerances, the
// operator questions and the consequence narratives.
package gamedata

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleA Role = "A"
	RoleB Role = "B"
	RoleC Role = "C"
	RoleD Role = "D"
)

var Roles = []Role{RoleA, RoleB, RoleC, RoleD}

func (r Role) Valid() bool {
	switch r {
	case RoleA, RoleB, RoleC, RoleD:
		return true
	}
	return false
}

// RoleNames are the functions each role stands for in the exercise.
var RoleNames = map[Role]string{
	RoleA: "Quality Assurance",
	RoleB: "Production",
	RoleC: "Food Safety",
	RoleD: "Commercial",
}

type GameRole string

const (
	Commander GameRole = "commander"
	Crew      GameRole = "crew"
)

// Verdict is a judgment on one criterion. Players choose among Met, NotMet
// and Insufficient; MetUnsound only appears as ground truth.
type Verdict string

const (
	Met          Verdict = "met"
	NotMet       Verdict = "not-met"
	Insufficient Verdict = "insufficient"
	MetUnsound   Verdict = "met-unsound"
)

func (v Verdict) Judgeable() bool {
	return v == Met || v == NotMet || v == Insufficient
}

const NumStages = 4

// StageKey names the record field holding stage n.
func StageKey(n int) string {
	return fmt.Sprintf("stage%d", n)
}

type Config struct {
	TeamCapacity   int
	SamplingBudget int
	// MaxCriteria bounds each player's stage 1 selection.
	MaxCriteria int
	// MinSamples is the per-test sample count below which a passing
	// criterion is statistically unsound.
	MinSamples int
	// StageMinutes is the default countdown for timed stages.
	StageMinutes map[int]int
}

func DefaultConfig() Config {
	return Config{
		TeamCapacity:   12,
		SamplingBudget: 300,
		MaxCriteria:    3,
		MinSamples:     3,
		StageMinutes:   map[int]int{2: 10, 3: 15, 4: 15},
	}
}

// StageDuration returns the countdown for stage, zero when it is untimed.
func (c Config) StageDuration(stage int) time.Duration {
	return time.Duration(c.StageMinutes[stage]) * time.Minute
}
