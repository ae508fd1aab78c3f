package teams

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidName = errors.New("team name must contain a letter or digit")

const maxIDLength = 48

// NormalizeID derives the record id from a team name: accents stripped,
// case folded, and every run of other characters collapsed to one dash.
// "Équipe  Nord!" and "equipe-nord" name the same team.
func NormalizeID(name string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	n := 0
	gap := false
	for _, r := range folded {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			gap = true
			continue
		}
		if n == maxIDLength {
			break
		}
		if gap && n > 0 {
			b.WriteByte('-')
		}
		gap = false
		b.WriteRune(r)
		n++
	}
	if n == 0 {
		return "", ErrInvalidName
	}
	return b.String(), nil
}
