// Package grading derives the true verdict of each criterion from trial
// data and scores a team's judgments against it.
package grading

import (
	"math"

	"northstar/internal/gamedata"
	"northstar/internal/teams"
	"northstar/internal/trialdata"
)

const (
	AttemptCredit  = 2
	CorrectCredit  = 10
	CautiousCredit = 5
	CoverageBonus  = 20
	MaxScore       = 100
)

// Error classes of a wrong judgment.
const (
	FalsePositive        = "false-positive"
	AssumedSuccess       = "assumed-success"
	StatisticallyUnsound = "statistically-unsound"
	MissedData           = "missed-data"
)

var errorSeverity = map[string]gamedata.Severity{
	FalsePositive:        gamedata.SeverityCritical,
	AssumedSuccess:       gamedata.SeverityMajor,
	StatisticallyUnsound: gamedata.SeverityModerate,
	MissedData:           gamedata.SeverityMinor,
}

var severityRank = map[gamedata.Severity]int{
	gamedata.SeverityMinor:    1,
	gamedata.SeverityModerate: 2,
	gamedata.SeverityMajor:    3,
	gamedata.SeverityCritical: 4,
}

// Truth is the verdict the data supports for c. minSamples is the
// per-test count below which a passing criterion is unsound.
func Truth(c gamedata.Criterion, ds trialdata.Dataset, minSamples int) gamedata.Verdict {
	if c.Kind == gamedata.KindConversation {
		return conversationTruth(c, ds)
	}
	collected := false
	for _, m := range c.Measurements {
		if ds.Samples(m) > 0 {
			collected = true
			break
		}
	}
	if !collected {
		return gamedata.Insufficient
	}
	for _, m := range c.Measurements {
		if ds.HasCritical(m) {
			return gamedata.NotMet
		}
	}
	for _, m := range c.Measurements {
		if ds.Samples(m) < minSamples {
			return gamedata.MetUnsound
		}
	}
	return gamedata.Met
}

// conversationTruth reads quotes in place of readings: any negative quote
// fails the criterion and leaving one of its questions unasked makes a
// pass unsound.
func conversationTruth(c gamedata.Criterion, ds trialdata.Dataset) gamedata.Verdict {
	asked := 0
	for _, q := range c.Questions {
		quote, ok := ds.Quote(q)
		if !ok {
			continue
		}
		if quote.Negative {
			return gamedata.NotMet
		}
		asked++
	}
	switch {
	case asked == 0:
		return gamedata.Insufficient
	case asked < len(c.Questions):
		return gamedata.MetUnsound
	}
	return gamedata.Met
}

func isMet(v gamedata.Verdict) bool {
	return v == gamedata.Met || v == gamedata.MetUnsound
}

// Points scores a judgment. The two met cases count as one; answering
// not-met when the truth was met earns partial credit.
func Points(claimed, truth gamedata.Verdict) int {
	if !claimed.Judgeable() {
		return 0
	}
	switch {
	case claimed == truth, claimed == gamedata.Met && isMet(truth):
		return AttemptCredit + CorrectCredit
	case claimed == gamedata.NotMet && isMet(truth):
		return AttemptCredit + CautiousCredit
	}
	return AttemptCredit
}

// Classify names the error a judgment makes, or "" when there is none
// worth a narrative.
func Classify(claimed, truth gamedata.Verdict) string {
	switch {
	case claimed == gamedata.Met && truth == gamedata.NotMet:
		return FalsePositive
	case claimed == gamedata.Met && truth == gamedata.Insufficient:
		return AssumedSuccess
	case claimed == gamedata.Met && truth == gamedata.MetUnsound:
		return StatisticallyUnsound
	case claimed == gamedata.Insufficient && (truth == gamedata.Met || truth == gamedata.NotMet):
		return MissedData
	}
	return ""
}

func Severity(class string) gamedata.Severity {
	return errorSeverity[class]
}

// Grade scores judgments over the selected criteria.
func Grade(criteria []string, judgments map[string]gamedata.Verdict, ds trialdata.Dataset, minSamples int) teams.Result {
	var res teams.Result
	resolved := gamedata.Resolve(criteria)
	total, covered := 0, 0
	for _, c := range resolved {
		truth := Truth(c, ds, minSamples)
		claimed := judgments[c.ID]
		cr := teams.CriterionResult{
			Criterion: c.ID,
			Claimed:   claimed,
			Truth:     truth,
			Points:    Points(claimed, truth),
			Error:     Classify(claimed, truth),
		}
		if cr.Error != "" {
			cr.Severity = Severity(cr.Error)
			if severityRank[cr.Severity] > severityRank[res.Worst] {
				res.Worst = cr.Severity
			}
		}
		if truth != gamedata.Insufficient {
			covered++
		}
		total += cr.Points
		res.Criteria = append(res.Criteria, cr)
	}
	if len(resolved) > 0 {
		res.Coverage = float64(covered) / float64(len(resolved))
	}
	total += int(math.Round(res.Coverage * CoverageBonus))
	res.Score = min(total, MaxScore)
	res.Narrative = gamedata.Narrative(res.Worst)
	return res
}
