package analytics

import (
	"northstar/internal/checklist"
	"northstar/internal/consensus"
	"northstar/internal/gamedata"
	"northstar/internal/players"
	"northstar/internal/sampling"
	"northstar/internal/teams"
)

type BadgeID string

const (
	BadgeMissionDefined BadgeID = "mission_defined"
	BadgeLineReady      BadgeID = "line_ready"
	BadgePlanFiled      BadgeID = "plan_filed"
	BadgeVerdictIn      BadgeID = "verdict_in"
	BadgeFullHouse      BadgeID = "full_house"
	BadgeCleanSheet     BadgeID = "clean_sheet"
	BadgeFrugal         BadgeID = "frugal"
	BadgeEvidenceBased  BadgeID = "evidence_based"
	BadgeFullCoverage   BadgeID = "full_coverage"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeMissionDefined: {ID: BadgeMissionDefined, Name: "Mission Defined", Description: "Agreed the success criteria", Icon: "🧭"},
	BadgeLineReady:      {ID: BadgeLineReady, Name: "Line Ready", Description: "Finished the pre-trial checklist", Icon: "✅"},
	BadgePlanFiled:      {ID: BadgePlanFiled, Name: "Plan Filed", Description: "Filed a sampling plan", Icon: "🧪"},
	BadgeVerdictIn:      {ID: BadgeVerdictIn, Name: "Verdict In", Description: "Submitted the assessment", Icon: "⭐"},
	BadgeFullHouse:      {ID: BadgeFullHouse, Name: "Full House", Description: "Every function had someone at the table", Icon: "🏠"},
	BadgeCleanSheet:     {ID: BadgeCleanSheet, Name: "Clean Sheet", Description: "Finished the checklist without a penalty", Icon: "🧼"},
	BadgeFrugal:         {ID: BadgeFrugal, Name: "Frugal", Description: "Filed a plan using at most 80% of the budget", Icon: "💰"},
	BadgeEvidenceBased:  {ID: BadgeEvidenceBased, Name: "Evidence Based", Description: "Every call was backed by the data", Icon: "🔬"},
	BadgeFullCoverage:   {ID: BadgeFullCoverage, Name: "Full Coverage", Description: "Collected data on every selected criterion", Icon: "📈"},
}

// stageBadges maps each stage to the badge its completion earns.
var stageBadges = map[int]BadgeID{
	1: BadgeMissionDefined,
	2: BadgeLineReady,
	3: BadgePlanFiled,
	4: BadgeVerdictIn,
}

// EvaluateStageBadges lists the badges for completed stages, in stage order.
func EvaluateStageBadges(rec teams.Record) []Badge {
	var earned []Badge
	for stage := 1; stage <= gamedata.NumStages; stage++ {
		if _, ok := rec.Badges[gamedata.StageKey(stage)]; ok {
			earned = append(earned, AllBadges[stageBadges[stage]])
		}
	}
	return earned
}

// EvaluateTeamBadges checks which achievement badges a team has earned.
func EvaluateTeamBadges(rec teams.Record, budget int) []Badge {
	var earned []Badge

	// Full House: every role staffed and converged
	if len(players.Roster(rec.Players).MissingRoles()) == 0 && consensus.AllRolesConverged(rec) {
		earned = append(earned, AllBadges[BadgeFullHouse])
	}

	// Clean Sheet: checklist finished with zero penalties
	if checklist.AllDone(rec) && checklist.PenaltyTotal(rec) == 0 {
		earned = append(earned, AllBadges[BadgeCleanSheet])
	}

	// Frugal: a filed plan spending at most 80% of the budget
	if total := sampling.Total(rec.Stage3); total > 0 && total*5 <= budget*4 {
		if _, ok := rec.Badges[gamedata.StageKey(3)]; ok {
			earned = append(earned, AllBadges[BadgeFrugal])
		}
	}

	if res := rec.Stage4.Result; res != nil {
		// Evidence Based: no judgment errors at all
		if res.Worst == "" {
			earned = append(earned, AllBadges[BadgeEvidenceBased])
		}
		// Full Coverage: data on every criterion
		if res.Coverage >= 1 {
			earned = append(earned, AllBadges[BadgeFullCoverage])
		}
	}

	return earned
}
