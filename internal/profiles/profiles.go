package profiles

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"podscript/internal/podcast"
	"podscript/internal/services"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

// SourceDefault marks profiles that came from the embedded set.
const SourceDefault = "builtin"

// StageConfig overrides sampling for one stage.
type StageConfig struct {
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// EpisodeProfile bundles the defaults for a recurring kind of episode.
type EpisodeProfile struct {
	Name               string       `yaml:"-" json:"name"`
	SpeakerConfig      string       `yaml:"speaker_config" json:"speaker_config"`
	OutlineProvider    string       `yaml:"outline_provider" json:"outline_provider"`
	OutlineModel       string       `yaml:"outline_model" json:"outline_model"`
	TranscriptProvider string       `yaml:"transcript_provider" json:"transcript_provider"`
	TranscriptModel    string       `yaml:"transcript_model" json:"transcript_model"`
	NumSegments        int          `yaml:"num_segments" json:"num_segments"`
	DefaultBriefing    string       `yaml:"default_briefing" json:"default_briefing"`
	OutlineConfig      *StageConfig `yaml:"outline_config,omitempty" json:"outline_config,omitempty"`
	TranscriptConfig   *StageConfig `yaml:"transcript_config,omitempty" json:"transcript_config,omitempty"`
}

// file is the on-disk layout. "profiles" is accepted as an alias for
// speaker_profiles so older speakers_config.json files load unchanged.
type file struct {
	SpeakerProfiles map[string]podcast.SpeakerProfile `yaml:"speaker_profiles"`
	Profiles        map[string]podcast.SpeakerProfile `yaml:"profiles"`
	EpisodeProfiles map[string]EpisodeProfile         `yaml:"episode_profiles"`
}

// Catalog holds every known profile.
type Catalog struct {
	speakers       map[string]podcast.SpeakerProfile
	episodes       map[string]EpisodeProfile
	speakerSources map[string]string
	episodeSources map[string]string
}

// Load builds a catalog from the embedded defaults plus every .yaml, .yml, and
// .json file directly inside dir. A missing dir is not an error.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{
		speakers:       make(map[string]podcast.SpeakerProfile),
		episodes:       make(map[string]EpisodeProfile),
		speakerSources: make(map[string]string),
		episodeSources: make(map[string]string),
	}
	entries, err := fs.ReadDir(defaultFiles, "defaults")
	if err != nil {
		return nil, fmt.Errorf("read embedded profiles: %w", err)
	}
	for _, entry := range entries {
		data, err := defaultFiles.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded profile %s: %w", entry.Name(), err)
		}
		if err := c.add(data, SourceDefault); err != nil {
			return nil, fmt.Errorf("parse embedded profile %s: %w", entry.Name(), err)
		}
	}

	dir = strings.TrimSpace(dir)
	if dir != "" {
		paths, err := profileFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read profile file %s: %w", path, err)
			}
			if err := c.add(data, path); err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "profiles", "load", path, err)
			}
		}
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func profileFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles dir %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *Catalog) add(data []byte, source string) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	for _, set := range []map[string]podcast.SpeakerProfile{f.Profiles, f.SpeakerProfiles} {
		for name, profile := range set {
			profile.Name = name
			c.speakers[name] = profile
			c.speakerSources[name] = source
		}
	}
	for name, profile := range f.EpisodeProfiles {
		profile.Name = name
		c.episodes[name] = profile
		c.episodeSources[name] = source
	}
	return nil
}

func (c *Catalog) validate() error {
	for _, name := range c.SpeakerNames() {
		if err := c.speakers[name].Validate(); err != nil {
			return services.Wrap(services.ErrConfiguration, "profiles", "validate",
				fmt.Sprintf("speaker profile %q (%s)", name, c.speakerSources[name]), err)
		}
	}
	for _, name := range c.EpisodeNames() {
		ep := c.episodes[name]
		detail := fmt.Sprintf("episode profile %q (%s)", name, c.episodeSources[name])
		if ep.NumSegments < 0 {
			return services.Wrap(services.ErrConfiguration, "profiles", "validate", detail+": num_segments must not be negative", nil)
		}
		if ep.SpeakerConfig != "" {
			if _, ok := c.speakers[ep.SpeakerConfig]; !ok {
				return services.Wrap(services.ErrConfiguration, "profiles", "validate",
					fmt.Sprintf("%s: unknown speaker_config %q", detail, ep.SpeakerConfig), nil)
			}
		}
	}
	return nil
}

// Speaker returns the named speaker profile.
func (c *Catalog) Speaker(name string) (podcast.SpeakerProfile, error) {
	profile, ok := c.speakers[strings.TrimSpace(name)]
	if !ok {
		return podcast.SpeakerProfile{}, services.Wrap(services.ErrNotFound, "profiles", "speaker",
			fmt.Sprintf("speaker profile %q (available: %s)", name, strings.Join(c.SpeakerNames(), ", ")), nil)
	}
	profile.Speakers = slices.Clone(profile.Speakers)
	return profile, nil
}

// Episode returns the named episode profile.
func (c *Catalog) Episode(name string) (EpisodeProfile, error) {
	profile, ok := c.episodes[strings.TrimSpace(name)]
	if !ok {
		return EpisodeProfile{}, services.Wrap(services.ErrNotFound, "profiles", "episode",
			fmt.Sprintf("episode profile %q (available: %s)", name, strings.Join(c.EpisodeNames(), ", ")), nil)
	}
	return profile, nil
}

// SpeakerNames lists speaker profile names in sorted order.
func (c *Catalog) SpeakerNames() []string {
	return sortedKeys(c.speakers)
}

// EpisodeNames lists episode profile names in sorted order.
func (c *Catalog) EpisodeNames() []string {
	return sortedKeys(c.episodes)
}

// SpeakerSource reports where a speaker profile was loaded from.
func (c *Catalog) SpeakerSource(name string) string { return c.speakerSources[name] }

// EpisodeSource reports where an episode profile was loaded from.
func (c *Catalog) EpisodeSource(name string) string { return c.episodeSources[name] }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
