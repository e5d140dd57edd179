package main

import (
	"path/filepath"
	"strings"
	"testing"

	"podscript/internal/testsupport"
)

func TestProfilesList(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.baseDir, "profiles", "team.yaml"), `speaker_profiles:
  night_shift:
    speakers:
      - name: Ada
        backstory: Night editor.
        personality: Dry wit.
`)

	out := mustRun(t, env, "profiles", "list")
	for _, want := range []string{"ai_researchers", "night_shift", "language_learning", "builtin", "team.yaml"} {
		requireContains(t, out, want)
	}
}

func TestProfilesShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out := mustRun(t, env, "profiles", "show", "language_learning")
	requireContains(t, out, "episode_profiles:")
	requireContains(t, out, "speaker_config: language_tutors")

	out = mustRun(t, env, "profiles", "show", "solo_expert")
	requireContains(t, out, "speaker_profiles:")
	requireContains(t, out, "episode_profiles:")
	if strings.Count(out, "---") != 1 {
		t.Fatalf("expected one document separator:\n%s", out)
	}

	if _, err := env.run(t, "profiles", "show", "missing"); err == nil {
		t.Fatal("expected unknown profile to fail")
	}
}

func TestPlanEpisodeResolvesProfilesAndFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := newCommandContext(&env.configPath, nil)
	cfg, err := ctx.ensureConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	catalog, err := ctx.catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	contentFile := testsupport.WriteFile(t, filepath.Join(env.baseDir, "notes.md"), "  From a file.  \n")

	plan, err := planEpisode(cfg, catalog, episodeInput{
		EpisodeProfile:  "language_learning",
		Difficulty:      "Easy",
		Segments:        2,
		OutlineProvider: "openrouter",
		Content:         []string{"inline", "  "},
		ContentFiles:    []string{contentFile},
	})
	if err != nil {
		t.Fatalf("planEpisode: %v", err)
	}
	job := plan.Job
	if plan.Profile != "language_learning" || job.NumSegments != 2 {
		t.Fatalf("profile=%q segments=%d", plan.Profile, job.NumSegments)
	}
	if !strings.Contains(job.Briefing, "language learners") || !strings.Contains(job.Briefing, "Difficulty: EASY") {
		t.Fatalf("briefing missing profile default or difficulty:\n%s", job.Briefing)
	}
	if job.Outline.Provider != "openrouter" {
		t.Fatalf("outline provider = %q", job.Outline.Provider)
	}
	if job.Transcript.Provider != "openai" || job.Transcript.Model != "gpt-4o" {
		t.Fatalf("transcript stage = %+v", job.Transcript)
	}
	if job.Transcript.Temperature == nil || *job.Transcript.Temperature != 0.6 || job.Transcript.MaxTokens != 6000 {
		t.Fatalf("transcript overrides = %+v", job.Transcript)
	}
	if len(job.Context) != 2 || job.Context[0] != "inline" || job.Context[1] != "From a file." {
		t.Fatalf("context = %q", job.Context)
	}
	if job.MinTurns != cfg.Generation.MinTurns {
		t.Fatalf("turns = %d", job.MinTurns)
	}
	if !strings.HasPrefix(plan.OutputDir, env.outputDir) {
		t.Fatalf("output dir %s not under %s", plan.OutputDir, env.outputDir)
	}
}

func TestPlanEpisodeRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := newCommandContext(&env.configPath, nil)
	cfg, err := ctx.ensureConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	catalog, err := ctx.catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	briefingFile := testsupport.WriteFile(t, filepath.Join(env.baseDir, "brief.txt"), "text")

	tests := []struct {
		name string
		in   episodeInput
		want string
	}{
		{"both briefings", episodeInput{Briefing: "a", BriefingFile: briefingFile}, "not both"},
		{"missing file", episodeInput{BriefingFile: filepath.Join(env.baseDir, "nope.txt")}, "read briefing file"},
		{"bad difficulty", episodeInput{Briefing: "a", Difficulty: "impossible"}, "impossible"},
		{"unknown episode profile", episodeInput{Briefing: "a", EpisodeProfile: "nope"}, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := planEpisode(cfg, catalog, tt.in)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultEpisodeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "renewable energy", want: "Renewable Energy"},
		{in: "How grid batteries, pumped hydro, and demand response", want: "How Grid Batteries Pumped Hydro And"},
		{in: "   ", want: "Untitled Episode"},
	}
	for _, tt := range tests {
		if got := defaultEpisodeName(tt.in); got != tt.want {
			t.Errorf("defaultEpisodeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
