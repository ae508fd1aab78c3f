package gamedata

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Consequences are the narratives shown for the most severe assessment
// error a team made.
var Consequences = map[Severity]string{
	SeverityCritical: "The product launched with a failure your data showed. Two weeks in, a retailer " +
		"found under-processed packs and the line was stopped for a full recall.",
	SeverityMajor: "You signed off on something nobody had measured. The launch went ahead, but the " +
		"first customer complaints arrived before anyone could explain them.",
	SeverityModerate: "Your conclusion was probably right, but a handful of samples could not prove it. " +
		"The auditor asked for the trial to be repeated before approving the line.",
	SeverityMinor: "You held back a criterion the data already supported. The launch slipped a week " +
		"while the team gathered evidence it already had.",
}

// NoErrorNarrative is shown when every judgment was correct.
const NoErrorNarrative = "Every call you made was backed by the data. The line was approved first time."

func Narrative(s Severity) string {
	if n, ok := Consequences[s]; ok {
		return n
	}
	return NoErrorNarrative
}
