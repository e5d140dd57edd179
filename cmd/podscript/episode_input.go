package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podscript/internal/config"
	"podscript/internal/episode"
	"podscript/internal/podcast"
	"podscript/internal/profiles"
	"podscript/internal/textutil"
)

// episodeInput is what a user asks for, from flags or one entry of a batch
// file. Empty fields fall back to the episode profile and then to config.
type episodeInput struct {
	Name               string   `yaml:"name"`
	Briefing           string   `yaml:"briefing"`
	BriefingFile       string   `yaml:"briefing_file"`
	Content            []string `yaml:"content"`
	ContentFiles       []string `yaml:"content_files"`
	OutputDir          string   `yaml:"output_dir"`
	SpeakerProfile     string   `yaml:"speakers"`
	EpisodeProfile     string   `yaml:"episode_profile"`
	Difficulty         string   `yaml:"difficulty"`
	Segments           int      `yaml:"segments"`
	Turns              int      `yaml:"turns"`
	OutlineProvider    string   `yaml:"outline_provider"`
	OutlineModel       string   `yaml:"outline_model"`
	TranscriptProvider string   `yaml:"transcript_provider"`
	TranscriptModel    string   `yaml:"transcript_model"`
	SkipFailedSegments bool     `yaml:"skip_failed_segments"`
}

// plannedEpisode is an episodeInput resolved against profiles and config.
type plannedEpisode struct {
	Job       episode.Job
	Content   []string
	OutputDir string
	Profile   string
}

const defaultNameWords = 6

func planEpisode(cfg *config.Config, catalog *profiles.Catalog, in episodeInput) (plannedEpisode, error) {
	briefing, err := readText(in.Briefing, in.BriefingFile, "briefing")
	if err != nil {
		return plannedEpisode{}, err
	}
	content, err := readContent(in.Content, in.ContentFiles)
	if err != nil {
		return plannedEpisode{}, err
	}
	difficulty, err := profiles.ParseDifficulty(in.Difficulty)
	if err != nil {
		return plannedEpisode{}, err
	}

	resolved, err := catalog.Resolve(profiles.Selection{
		EpisodeProfile:     in.EpisodeProfile,
		SpeakerProfile:     in.SpeakerProfile,
		OutlineProvider:    in.OutlineProvider,
		OutlineModel:       in.OutlineModel,
		TranscriptProvider: in.TranscriptProvider,
		TranscriptModel:    in.TranscriptModel,
		NumSegments:        in.Segments,
		Briefing:           briefing,
		Difficulty:         difficulty,
	}, profiles.Defaults{
		SpeakerProfile: cfg.Generation.SpeakerProfile,
		NumSegments:    cfg.Generation.NumSegments,
	})
	if err != nil {
		return plannedEpisode{}, err
	}
	if strings.TrimSpace(resolved.Briefing) == "" {
		return plannedEpisode{}, errors.New("briefing required (use --briefing, --briefing-file, or an episode profile with a default_briefing)")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = defaultEpisodeName(resolved.Briefing)
	}
	turns := in.Turns
	if turns <= 0 {
		turns = cfg.Generation.MinTurns
	}
	policy := episode.ParsePolicy(cfg.Generation.SegmentFailurePolicy)
	if in.SkipFailedSegments {
		policy = episode.PolicySkip
	}

	outputDir := strings.TrimSpace(in.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join(cfg.Paths.OutputDir, textutil.Slug(name))
	} else if outputDir, err = config.ExpandPath(outputDir); err != nil {
		return plannedEpisode{}, fmt.Errorf("resolve output dir: %w", err)
	}

	return plannedEpisode{
		Job: episode.Job{
			Name:        name,
			Briefing:    resolved.Briefing,
			Context:     content,
			Speakers:    resolved.Speakers.Speakers,
			NumSegments: resolved.NumSegments,
			MinTurns:    turns,
			Policy:      policy,
			Outline:     stageOverride(resolved.Outline),
			Transcript:  stageOverride(resolved.Transcript),
		},
		Content:   content,
		OutputDir: outputDir,
		Profile:   resolved.EpisodeProfile,
	}, nil
}

func stageOverride(s profiles.Stage) episode.StageOverride {
	return episode.StageOverride{
		Provider:    s.Provider,
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}

func readText(inline, path, label string) (string, error) {
	inline = strings.TrimSpace(inline)
	path = strings.TrimSpace(path)
	if inline != "" && path != "" {
		return "", fmt.Errorf("%s: use either the inline value or the file, not both", label)
	}
	if path == "" {
		return inline, nil
	}
	data, err := readInputFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s file: %w", label, err)
	}
	return strings.TrimSpace(data), nil
}

// readContent returns the inline items followed by each file's text. Empty
// items are dropped.
func readContent(inline, files []string) ([]string, error) {
	content := make([]string, 0, len(inline)+len(files))
	for _, item := range inline {
		if item = strings.TrimSpace(item); item != "" {
			content = append(content, item)
		}
	}
	for _, path := range files {
		data, err := readInputFile(path)
		if err != nil {
			return nil, fmt.Errorf("read content file: %w", err)
		}
		if data = strings.TrimSpace(data); data != "" {
			content = append(content, data)
		}
	}
	return content, nil
}

func readInputFile(path string) (string, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// defaultEpisodeName titles the first few words of the briefing.
func defaultEpisodeName(briefing string) string {
	words := strings.FieldsFunc(briefing, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '.' || r == ',' || r == ':' || r == ';'
	})
	if len(words) > defaultNameWords {
		words = words[:defaultNameWords]
	}
	if len(words) == 0 {
		return "Untitled Episode"
	}
	return textutil.Title(strings.Join(words, " "))
}

func speakerNames(speakers []podcast.Speaker) string {
	return strings.Join(podcast.SpeakerNames(speakers), ", ")
}
