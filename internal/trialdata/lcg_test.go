package trialdata

import (
	"hash/crc32"
	"testing"
)

func TestLCG_Sequence(t *testing.T) {
	g := NewLCG(0)
	want := []uint32{1013904223, 1196435762, 3519870697}
	for i, w := range want {
		got := g.Next()
		if got != float64(w)/(1<<32) {
			t.Errorf("Next() #%d = %v, want %v", i, got, float64(w)/(1<<32))
		}
	}
}

func TestLCG_Range(t *testing.T) {
	g := NewLCG(42)
	for i := 0; i < 10000; i++ {
		if v := g.Next(); v < 0 || v >= 1 {
			t.Fatalf("Next() = %v, out of [0,1)", v)
		}
		if n := g.Intn(7); n < 0 || n >= 7 {
			t.Fatalf("Intn(7) = %d", n)
		}
	}
}

func TestTrialSeed(t *testing.T) {
	sum := crc32.ChecksumIEEE([]byte("orbit"))
	if got := TrialSeed(1000, "orbit"); got != 1000+sum {
		t.Errorf("TrialSeed() = %d, want %d", got, 1000+sum)
	}
	// Wraps modulo 2^32.
	big := int64(1)<<32 + 5
	if got := TrialSeed(big, "orbit"); got != 5+sum {
		t.Errorf("TrialSeed(2^32+5) = %d, want %d", got, 5+sum)
	}
	if TrialSeed(1000, "orbit") == TrialSeed(1000, "comet") {
		t.Error("team id should change the seed")
	}
}

func TestConversationSeed_IndependentStream(t *testing.T) {
	seed := TrialSeed(1_700_000_000_000, "orbit")
	if ConversationSeed(seed) != seed+7919 {
		t.Errorf("ConversationSeed() = %d", ConversationSeed(seed))
	}
	if NewLCG(seed).Next() == NewLCG(ConversationSeed(seed)).Next() {
		t.Error("streams should differ")
	}
}
