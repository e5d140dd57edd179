package profiles

import (
	"fmt"
	"strings"
)

// Difficulty is a language-learning level appended to the briefing.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// Difficulties lists the accepted levels, easiest first.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

// ParseDifficulty accepts a level name in any case. An empty value returns "".
func ParseDifficulty(value string) (Difficulty, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "", nil
	}
	for _, d := range Difficulties {
		if string(d) == value {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown difficulty %q (expected easy, medium, hard, or expert)", value)
}

var difficultyBriefings = map[Difficulty]string{
	DifficultyEasy: `Difficulty: EASY (A2-B1).
- Use mostly present tense and short sentences of at most 10-15 words.
- Stick to common, everyday vocabulary and repeat key words throughout the episode.
- Avoid idioms unless a host explains them immediately.`,
	DifficultyMedium: `Difficulty: MEDIUM (B1-B2).
- Mix present and past tenses and allow simple subordinate clauses.
- Introduce some topic vocabulary and let the hosts paraphrase new words.
- Common idioms are fine when the context makes them clear.`,
	DifficultyHard: `Difficulty: HARD (B2-C1).
- Use the full range of tenses and longer, connected sentences.
- Include specialized vocabulary and idiomatic expressions without explanation.
- Let the hosts debate and use irony or humor naturally.`,
	DifficultyExpert: `Difficulty: EXPERT (C1-C2).
- Speak as native speakers would, with complex syntax and a fast pace.
- Use regional expressions, wordplay, and nuanced register shifts.
- Assume the listener follows abstract argument without support.`,
}

// Briefing returns the briefing text for d, or "" when d is empty.
func (d Difficulty) Briefing() string {
	return difficultyBriefings[d]
}

// ApplyDifficulty appends the difficulty instructions to briefing.
func ApplyDifficulty(briefing string, d Difficulty) string {
	extra := d.Briefing()
	briefing = strings.TrimSpace(briefing)
	switch {
	case extra == "":
		return briefing
	case briefing == "":
		return extra
	default:
		return briefing + "\n\n" + extra
	}
}
