package podcast

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinSpeakers = 1
	MaxSpeakers = 4
)

// Speaker is one voice in an episode. The voice fields are not used for text
// generation; they travel with the transcript to the audio consumer.
type Speaker struct {
	Name        string         `json:"name" yaml:"name"`
	Backstory   string         `json:"backstory" yaml:"backstory"`
	Personality string         `json:"personality" yaml:"personality"`
	VoiceID     string         `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	TTSProvider string         `json:"tts_provider,omitempty" yaml:"tts_provider,omitempty"`
	TTSModel    string         `json:"tts_model,omitempty" yaml:"tts_model,omitempty"`
	TTSConfig   map[string]any `json:"tts_config,omitempty" yaml:"tts_config,omitempty"`
}

// SpeakerProfile is a named, reusable set of speakers.
type SpeakerProfile struct {
	Name        string         `json:"name" yaml:"name"`
	TTSProvider string         `json:"tts_provider,omitempty" yaml:"tts_provider,omitempty"`
	TTSModel    string         `json:"tts_model,omitempty" yaml:"tts_model,omitempty"`
	TTSConfig   map[string]any `json:"tts_config,omitempty" yaml:"tts_config,omitempty"`
	Speakers    []Speaker      `json:"speakers" yaml:"speakers"`
}

// SpeakerNames returns the speaker names in profile order.
func (p SpeakerProfile) SpeakerNames() []string {
	names := make([]string, 0, len(p.Speakers))
	for _, s := range p.Speakers {
		names = append(names, s.Name)
	}
	return names
}

// Speaker looks up a speaker by exact name.
func (p SpeakerProfile) Speaker(name string) (Speaker, bool) {
	for _, s := range p.Speakers {
		if s.Name == name {
			return s, true
		}
	}
	return Speaker{}, false
}

// Validate checks the speaker count and that names are present and unique.
func (p SpeakerProfile) Validate() error {
	return ValidateSpeakers(p.Speakers)
}

// ValidateSpeakers enforces the speaker set invariants shared by profiles and
// ad hoc speaker lists.
func ValidateSpeakers(speakers []Speaker) error {
	if len(speakers) < MinSpeakers || len(speakers) > MaxSpeakers {
		return fmt.Errorf("speakers: expected %d to %d speakers, got %d", MinSpeakers, MaxSpeakers, len(speakers))
	}
	seen := make(map[string]struct{}, len(speakers))
	for i, s := range speakers {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("speakers[%d].name: must not be empty", i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("speakers[%d].name: duplicate speaker %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// SpeakerNames returns the names of the supplied speakers in order.
func SpeakerNames(speakers []Speaker) []string {
	return SpeakerProfile{Speakers: speakers}.SpeakerNames()
}

// Size is the target relative length of a segment.
type Size string

const (
	SizeShort  Size = "short"
	SizeMedium Size = "medium"
	SizeLong   Size = "long"
)

// Sizes lists the accepted segment sizes in ascending order.
var Sizes = []Size{SizeShort, SizeMedium, SizeLong}

// Valid reports whether s is one of the known sizes. Matching is exact.
func (s Size) Valid() bool {
	switch s {
	case SizeShort, SizeMedium, SizeLong:
		return true
	default:
		return false
	}
}

// Segment is one topical section of the outline.
type Segment struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Size        Size   `json:"size"`
}

// GenerationParams records which backend produced an artifact.
type GenerationParams struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Timestamp   time.Time `json:"timestamp"`
}

// Outline is the ordered plan of segments for an episode.
type Outline struct {
	Segments []Segment        `json:"segments"`
	Params   *GenerationParams `json:"params,omitempty"`
}

// Turn is one line of dialogue.
type Turn struct {
	Speaker  string `json:"speaker"`
	Dialogue string `json:"dialogue"`
}

// Transcript is the accumulated dialogue for an episode. Turns are only ever
// appended while an episode is being generated.
type Transcript struct {
	Turns  []Turn            `json:"transcript"`
	Params *GenerationParams `json:"params,omitempty"`
}

// Append adds turns to the end of the transcript.
func (t *Transcript) Append(turns ...Turn) {
	t.Turns = append(t.Turns, turns...)
}

// Len returns the number of turns.
func (t Transcript) Len() int {
	return len(t.Turns)
}

// ErrEmptyBriefing is returned when an episode has no briefing text.
var ErrEmptyBriefing = errors.New("briefing must not be empty")
