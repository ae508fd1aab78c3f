// Package trialdata turns a team's sampling plan into simulated trial
// results. Generation is a pure function of its Input: every player
// regenerates the same Dataset locally from the shared seed.
package trialdata

import (
	"math"

	"northstar/internal/gamedata"
	"northstar/internal/teams"
)

const (
	failShare        = 0.25
	failOutsideShare = 0.7
	outlierChance    = 0.15
	criticalOutlier  = 0.4
	negativeQuote    = 0.2
	offsetJitter     = 0.2
)

type Severity string

const (
	Critical Severity = "critical"
	Warning  Severity = "warning"
)

type Input struct {
	Plan         teams.Plan
	Conversation map[string]teams.AskedQuestion
	Criteria     []string
	Seed         uint32
}

// InputFromRecord collects the generator input from a team record.
func InputFromRecord(rec teams.Record, criteria []string, seed uint32) Input {
	return Input{
		Plan:         rec.Stage3.Plan,
		Conversation: rec.Stage3.Conversation,
		Criteria:     criteria,
		Seed:         seed,
	}
}

type Cell struct {
	Step      string `json:"step"`
	Test      string `json:"test"`
	Timepoint string `json:"timepoint"`
}

type Point struct {
	Cell
	Index int `json:"index"`
	// Offset is a small jitter on the plot's time axis.
	Offset float64 `json:"offset"`
	Value  float64 `json:"value"`
	InSpec bool    `json:"inSpec"`
}

type Summary struct {
	Cell
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	InSpec bool    `json:"inSpec"`
}

type Anomaly struct {
	Cell
	Value    float64  `json:"value"`
	Severity Severity `json:"severity"`
}

type Quote struct {
	Question string `json:"question"`
	Text     string `json:"text"`
	Negative bool   `json:"negative"`
}

type Dataset struct {
	Summaries []Summary              `json:"summaries"`
	Points    []Point                `json:"points"`
	Anomalies []Anomaly              `json:"anomalies"`
	Quotes    []Quote                `json:"quotes"`
	Uncovered []string               `json:"uncovered"`
	Failing   []gamedata.Measurement `json:"failing"`
}

// Samples counts the points generated for one step/test pair.
func (d Dataset) Samples(m gamedata.Measurement) int {
	n := 0
	for _, s := range d.Summaries {
		if s.Step == m.Step && s.Test == m.Test {
			n += s.Count
		}
	}
	return n
}

// HasCritical reports whether any critical anomaly lies on m.
func (d Dataset) HasCritical(m gamedata.Measurement) bool {
	for _, a := range d.Anomalies {
		if a.Step == m.Step && a.Test == m.Test && a.Severity == Critical {
			return true
		}
	}
	return false
}

func (d Dataset) Quote(question string) (Quote, bool) {
	for _, q := range d.Quotes {
		if q.Question == question {
			return q, true
		}
	}
	return Quote{}, false
}

// Covered reports whether the plan collects anything for c.
func Covered(c gamedata.Criterion, in Input) bool {
	switch c.Kind {
	case gamedata.KindConversation:
		for _, q := range c.Questions {
			if in.Conversation[q].Asked {
				return true
			}
		}
	default:
		for _, m := range c.Measurements {
			if planned(in.Plan, m) > 0 {
				return true
			}
		}
	}
	return false
}

func planned(plan teams.Plan, m gamedata.Measurement) int {
	n := 0
	for _, tp := range gamedata.Timepoints {
		if q := plan[m.Step][m.Test][tp]; q > 0 {
			n += q
		}
	}
	return n
}

// Generate produces the trial data for in. Plans are walked in catalog
// order so the random stream is consumed identically on every client.
func Generate(in Input) Dataset {
	g := NewLCG(in.Seed)
	var ds Dataset

	var covered []gamedata.Criterion
	anyCovered := false
	for _, c := range gamedata.Resolve(in.Criteria) {
		if !Covered(c, in) {
			ds.Uncovered = append(ds.Uncovered, c.ID)
			continue
		}
		anyCovered = true
		if c.Kind == gamedata.KindMeasurement {
			covered = append(covered, c)
		}
	}

	failing := pickFailing(g, covered, in.Plan)
	// Only conversational criteria are covered: fail the first sampled
	// measurement so the dataset still carries a critical anomaly. A plan
	// with no samples at all has nothing to flag.
	if len(failing) == 0 && anyCovered {
		if m, ok := firstSampled(in.Plan); ok {
			failing = append(failing, m)
		}
	}
	ds.Failing = failing

	for _, step := range gamedata.Steps {
		for _, test := range step.Tests {
			m := gamedata.Measurement{Step: step.ID, Test: test.ID}
			for _, tp := range gamedata.Timepoints {
				qty := in.Plan[step.ID][test.ID][tp]
				if qty <= 0 {
					continue
				}
				cell := Cell{Step: step.ID, Test: test.ID, Timepoint: tp}
				points := generateCell(g, cell, test, qty, contains(failing, m))
				ds.Points = append(ds.Points, points...)
				sum, anomaly := summarize(cell, test, points)
				ds.Summaries = append(ds.Summaries, sum)
				if anomaly != nil {
					ds.Anomalies = append(ds.Anomalies, *anomaly)
				}
			}
		}
	}

	ensureCritical(&ds)
	ds.Quotes = quotes(NewLCG(ConversationSeed(in.Seed)), in.Conversation)
	return ds
}

// pickFailing chooses which measurements fail systematically: each covered
// criterion fails with probability failShare on one of its sampled
// measurements, and one is forced when the draw picks none.
func pickFailing(g *LCG, covered []gamedata.Criterion, plan teams.Plan) []gamedata.Measurement {
	var failing []gamedata.Measurement
	choose := func(c gamedata.Criterion) {
		var sampled []gamedata.Measurement
		for _, m := range c.Measurements {
			if planned(plan, m) > 0 {
				sampled = append(sampled, m)
			}
		}
		m := sampled[g.Intn(len(sampled))]
		if !contains(failing, m) {
			failing = append(failing, m)
		}
	}
	for _, c := range covered {
		if g.Chance(failShare) {
			choose(c)
		}
	}
	if len(failing) == 0 && len(covered) > 0 {
		choose(covered[g.Intn(len(covered))])
	}
	return failing
}

// firstSampled returns the first measurement in catalog order that the
// plan allocates samples to.
func firstSampled(plan teams.Plan) (gamedata.Measurement, bool) {
	for _, step := range gamedata.Steps {
		for _, test := range step.Tests {
			m := gamedata.Measurement{Step: step.ID, Test: test.ID}
			if planned(plan, m) > 0 {
				return m, true
			}
		}
	}
	return gamedata.Measurement{}, false
}

func generateCell(g *LCG, cell Cell, test gamedata.Test, qty int, failing bool) []Point {
	points := make([]Point, qty)
	outlier := -1
	var outlierCritical bool
	if !failing && g.Chance(outlierChance) {
		outlier = g.Intn(qty)
		outlierCritical = g.Chance(criticalOutlier)
	}

	outside := 0
	for i := range points {
		var dev float64
		switch {
		case failing && g.Chance(failOutsideShare):
			dev = test.FailRange * g.Between(1.1, 1.6)
			outside++
		case failing:
			dev = test.Tolerance * g.Between(0.6, 0.95)
		case i == outlier && outlierCritical:
			dev = test.FailRange * g.Between(1.1, 1.5)
		case i == outlier:
			dev = test.Tolerance + (test.FailRange-test.Tolerance)*g.Between(0.2, 0.8)
		default:
			dev = test.Tolerance * g.Between(0, 0.5)
		}
		points[i] = Point{
			Cell:   cell,
			Index:  i,
			Offset: round2(g.Between(-offsetJitter, offsetJitter)),
			Value:  round2(test.Nominal + g.Sign()*dev),
		}
	}
	// A failing cell always shows the failure somewhere.
	if failing && outside == 0 {
		last := &points[qty-1]
		last.Value = round2(test.Nominal + test.FailRange*1.2)
	}
	for i := range points {
		points[i].InSpec = math.Abs(points[i].Value-test.Nominal) <= test.Tolerance
	}
	return points
}

func summarize(cell Cell, test gamedata.Test, points []Point) (Summary, *Anomaly) {
	sum := Summary{Cell: cell, Count: len(points), InSpec: true}
	var total float64
	worst := -1
	for i, p := range points {
		total += p.Value
		if !p.InSpec {
			sum.InSpec = false
			if worst < 0 || deviation(p, test) > deviation(points[worst], test) {
				worst = i
			}
		}
	}
	sum.Mean = round2(total / float64(len(points)))
	if worst < 0 {
		return sum, nil
	}
	a := &Anomaly{Cell: cell, Value: points[worst].Value, Severity: Warning}
	if deviation(points[worst], test) > test.FailRange {
		a.Severity = Critical
	}
	return sum, a
}

// ensureCritical promotes the first anomaly to critical when none is, and
// moves the matching reading with it.
func ensureCritical(ds *Dataset) {
	if len(ds.Anomalies) == 0 {
		return
	}
	for _, a := range ds.Anomalies {
		if a.Severity == Critical {
			return
		}
	}
	a := &ds.Anomalies[0]
	test, _ := gamedata.TestFor(a.Step, a.Test)
	sign := 1.0
	if a.Value < test.Nominal {
		sign = -1
	}
	promoted := round2(test.Nominal + sign*test.FailRange*1.2)

	var total float64
	var count int
	replaced := false
	for i := range ds.Points {
		p := &ds.Points[i]
		if p.Cell != a.Cell {
			continue
		}
		if !replaced && p.Value == a.Value {
			p.Value = promoted
			p.InSpec = false
			replaced = true
		}
		total += p.Value
		count++
	}
	for i := range ds.Summaries {
		if ds.Summaries[i].Cell == a.Cell {
			ds.Summaries[i].Mean = round2(total / float64(count))
		}
	}
	a.Value = promoted
	a.Severity = Critical
}

func quotes(g *LCG, asked map[string]teams.AskedQuestion) []Quote {
	var out []Quote
	for _, q := range gamedata.Questions {
		if !asked[q.ID].Asked {
			continue
		}
		neg := g.Chance(negativeQuote)
		pool := q.Positive
		if neg {
			pool = q.Negative
		}
		out = append(out, Quote{Question: q.ID, Text: pool[g.Intn(len(pool))], Negative: neg})
	}
	return out
}

func deviation(p Point, test gamedata.Test) float64 {
	return math.Abs(p.Value - test.Nominal)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func contains(ms []gamedata.Measurement, m gamedata.Measurement) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}
