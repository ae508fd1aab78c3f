package trialdata

import "hash/crc32"

// LCG is the linear congruential generator every client runs from the
// shared seed. Changing its constants changes every team's data.
type LCG struct {
	state uint32
}

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

func NewLCG(seed uint32) *LCG {
	return &LCG{state: seed}
}

// Next returns a value in [0, 1).
func (g *LCG) Next() float64 {
	g.state = g.state*lcgMultiplier + lcgIncrement
	return float64(g.state) / (1 << 32)
}

// Intn returns a value in [0, n). n must be positive.
func (g *LCG) Intn(n int) int {
	return int(g.Next() * float64(n))
}

// Chance reports true with probability p.
func (g *LCG) Chance(p float64) bool {
	return g.Next() < p
}

// Between returns a value in [lo, hi).
func (g *LCG) Between(lo, hi float64) float64 {
	return lo + (hi-lo)*g.Next()
}

// Sign returns -1 or 1 with equal probability.
func (g *LCG) Sign() float64 {
	if g.Chance(0.5) {
		return -1
	}
	return 1
}

// conversationOffset separates the quote stream from the trial stream.
const conversationOffset = 7919

// TrialSeed derives a team's seed from its creation time and id, modulo
// 2^32. Every player computes the same value.
func TrialSeed(createdAtMillis int64, teamID string) uint32 {
	return uint32(createdAtMillis) + crc32.ChecksumIEEE([]byte(teamID))
}

// ConversationSeed derives the seed of the quote stream from the trial
// seed.
func ConversationSeed(trial uint32) uint32 {
	return trial + conversationOffset
}
