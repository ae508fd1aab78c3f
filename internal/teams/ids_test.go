package teams

import (
	"errors"
	"testing"

	"northstar/internal/kvstore"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"North Star", "north-star"},
		{"  north   star  ", "north-star"},
		{"NORTH-STAR!", "north-star"},
		{"Équipe Nord", "equipe-nord"},
		{"Straße 9", "strasse-9"},
		{"a.b#c$d[e]f/g", "a-b-c-d-e-f-g"},
	}
	for _, tt := range tests {
		got, err := NormalizeID(tt.name)
		if err != nil {
			t.Errorf("NormalizeID(%q) error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.name, got, tt.want)
		}
		if err := kvstore.ValidKey(got); err != nil {
			t.Errorf("NormalizeID(%q) = %q is not a valid key", tt.name, got)
		}
	}
}

func TestNormalizeID_SameTeam(t *testing.T) {
	a, _ := NormalizeID("Mission North Star")
	b, _ := NormalizeID("mission-north-star")
	if a != b {
		t.Errorf("%q != %q", a, b)
	}
}

func TestNormalizeID_Empty(t *testing.T) {
	for _, name := range []string{"", "   ", "!!!", "--"} {
		if _, err := NormalizeID(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("NormalizeID(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestNormalizeID_Length(t *testing.T) {
	long := ""
	for range 100 {
		long += "x"
	}
	got, err := NormalizeID(long)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != maxIDLength {
		t.Errorf("length = %d, want %d", len(got), maxIDLength)
	}
}
