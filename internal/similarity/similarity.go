// internal/similarity/similarity.go
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Exact is the score of two strings considered the same word.
const Exact = 100

var lower = cases.Lower(language.Und)

// Normalize trims surrounding whitespace and lowercases s.
func Normalize(s string) string {
	return lower.String(strings.TrimSpace(s))
}

// Score rates how close candidate is to reference on a 0-100 scale.
// Phonetically equivalent words score Exact; otherwise the score is the
// edit-distance similarity relative to the longer string.
func Score(reference, candidate string) int {
	ref, cand := Normalize(reference), Normalize(candidate)
	if PhoneticMatch(ref, cand) {
		return Exact
	}
	return Lexical(ref, cand)
}

// IsMatch reports whether candidate is accepted as reference.
func IsMatch(reference, candidate string) bool {
	return Score(reference, candidate) == Exact
}

// codeCap is the length at which Double Metaphone stops encoding.
const codeCap = 4

// PhoneticCode is the primary Double Metaphone code of word.
func PhoneticCode(word string) string {
	primary, _ := matchr.DoubleMetaphone(word)
	return primary
}

// PhoneticMatch reports whether both strings share a non-empty phonetic code.
// Codes that reached the cap only describe a prefix and never match, so
// "universe" and "university" stay apart.
func PhoneticMatch(a, b string) bool {
	ca := PhoneticCode(a)
	if ca == "" || utf8.RuneCountInString(ca) >= codeCap {
		return false
	}
	return ca == PhoneticCode(b)
}

// Lexical is round((maxLen - distance) / maxLen * 100), counted in runes.
// Two empty strings are identical.
func Lexical(a, b string) int {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return Exact
	}
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(float64(maxLen-d) / float64(maxLen) * 100))
}

// ScoreText returns the best Score of any whitespace-separated token of text
// against reference, so a single word hidden among filler still counts.
func ScoreText(text, reference string) int {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return Score(reference, "")
	}
	best := 0
	for _, tok := range tokens {
		if s := Score(reference, tok); s > best {
			best = s
			if best == Exact {
				break
			}
		}
	}
	return best
}
