package theme

import (
	"math/rand"
	"strings"

	"blissbuilder/internal/trends"
)

const (
	DefaultTheme = "gentle rain over a peaceful forest"

	// scanLimit is how many leading records are scored for keywords.
	scanLimit = 20
)

type Variation struct {
	Keyword string
	Phrase  string
}

var Variations = []Variation{
	{"cardboard", "creative cardboard crafting with satisfying crushing sounds"},
	{"squishy", "colorful squishy toy cleaning with gentle squishing"},
	{"sand", "kinetic sand cutting and molding with crunchy textures"},
	{"foam", "delicate foam sculpting with airy whisper sounds"},
	{"unboxing", "soft spoken gift unboxing with crinkling paper sounds"},
	{"cooking", "peaceful cooking demonstration with sizzling and chopping"},
	{"cleaning", "satisfying deep cleaning with scrubbing and foaming"},
	{"tapping", "delicate glass tapping with crystal resonance"},
	{"whisper", "soft spoken storytelling with gentle breath sounds"},
	{"mystery", "mystery item reveals with anticipation and soft unwrapping"},
	{"paint", "slow motion paint mixing in swirling hypnotic patterns"},
	{"water", "tranquil water pouring with cascading liquid sounds"},
}

// Scores counts, per keyword, how many of the first 20 records mention it in title or description.
func Scores(records []trends.Record) map[string]int {
	scores := make(map[string]int)
	if len(records) > scanLimit {
		records = records[:scanLimit]
	}
	for _, r := range records {
		combined := strings.ToLower(r.Title + " " + r.Description)
		for _, v := range Variations {
			if strings.Contains(combined, v.Keyword) {
				scores[v.Keyword]++
			}
		}
	}
	return scores
}

// Candidates returns the phrases a fallback draw may pick from, in table order.
// Every keyword tied at the highest score contributes its phrase; with no hits the whole
// table is eligible, and an empty record set yields only DefaultTheme.
func Candidates(records []trends.Record) []string {
	if len(records) == 0 {
		return []string{DefaultTheme}
	}

	scores := Scores(records)
	best := 0
	for _, n := range scores {
		best = max(best, n)
	}

	var phrases []string
	for _, v := range Variations {
		if best == 0 || scores[v.Keyword] == best {
			phrases = append(phrases, v.Phrase)
		}
	}
	return phrases
}

// Fallback draws one theme from Candidates without touching the network.
func Fallback(records []trends.Record, rng *rand.Rand) string {
	candidates := Candidates(records)
	if len(candidates) == 1 {
		return candidates[0]
	}
	if rng == nil {
		return candidates[rand.Intn(len(candidates))]
	}
	return candidates[rng.Intn(len(candidates))]
}
