package profiles

import (
	"strings"

	"podscript/internal/podcast"
)

// Selection is what the caller asked for explicitly. Empty fields fall back
// to the episode profile and then to Defaults.
type Selection struct {
	EpisodeProfile     string
	SpeakerProfile     string
	OutlineProvider    string
	OutlineModel       string
	TranscriptProvider string
	TranscriptModel    string
	NumSegments        int
	Briefing           string
	Difficulty         Difficulty
}

// Defaults come from the config file.
type Defaults struct {
	SpeakerProfile string
	NumSegments    int
}

// Stage is the resolved provider/model choice for one stage. Empty values
// mean "use the config".
type Stage struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Resolved is the merged result of flags, profile, and config.
type Resolved struct {
	EpisodeProfile string
	Speakers       podcast.SpeakerProfile
	Outline        Stage
	Transcript     Stage
	NumSegments    int
	Briefing       string
}

// Resolve merges sel over the named episode profile over defaults.
func (c *Catalog) Resolve(sel Selection, defaults Defaults) (Resolved, error) {
	var profile EpisodeProfile
	if name := strings.TrimSpace(sel.EpisodeProfile); name != "" {
		p, err := c.Episode(name)
		if err != nil {
			return Resolved{}, err
		}
		profile = p
	}

	speakerName := firstNonEmpty(sel.SpeakerProfile, profile.SpeakerConfig, defaults.SpeakerProfile)
	speakers, err := c.Speaker(speakerName)
	if err != nil {
		return Resolved{}, err
	}

	out := Resolved{
		EpisodeProfile: profile.Name,
		Speakers:       speakers,
		Outline: stage(sel.OutlineProvider, sel.OutlineModel,
			profile.OutlineProvider, profile.OutlineModel, profile.OutlineConfig),
		Transcript: stage(sel.TranscriptProvider, sel.TranscriptModel,
			profile.TranscriptProvider, profile.TranscriptModel, profile.TranscriptConfig),
		NumSegments: firstPositive(sel.NumSegments, profile.NumSegments, defaults.NumSegments),
		Briefing:    ApplyDifficulty(firstNonEmpty(sel.Briefing, profile.DefaultBriefing), sel.Difficulty),
	}
	return out, nil
}

func stage(provider, model, profileProvider, profileModel string, cfg *StageConfig) Stage {
	s := Stage{
		Provider: firstNonEmpty(provider, profileProvider),
		Model:    firstNonEmpty(model, profileModel),
	}
	// A model from the profile only makes sense with the profile's provider.
	if strings.TrimSpace(provider) != "" && strings.TrimSpace(model) == "" && !strings.EqualFold(provider, profileProvider) {
		s.Model = ""
	}
	if cfg != nil {
		s.Temperature = cfg.Temperature
		s.MaxTokens = cfg.MaxTokens
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
