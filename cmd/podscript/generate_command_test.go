package main

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"podscript/internal/artifacts"
	"podscript/internal/services"
	"podscript/internal/testsupport"
)

func TestGenerateWritesArtifactsAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "generate",
		"--briefing", "Discuss how grid-scale batteries change renewable energy.",
		"--content", "Lithium prices fell 80% in a decade.",
		"--name", "Grid Storage",
		"--segments", "2",
		"--turns", "2",
		"--json",
	)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	summary := decodeSummary(t, out)
	if summary.Status != "complete" || summary.State != "complete" {
		t.Fatalf("unexpected status %s/%s", summary.Status, summary.State)
	}
	if summary.Segments != 2 || summary.Turns != 6 {
		t.Fatalf("segments=%d turns=%d, want 2 and 6", summary.Segments, summary.Turns)
	}
	wantDir := filepath.Join(env.outputDir, "grid-storage")
	if summary.OutputDir != wantDir {
		t.Fatalf("output dir = %s, want %s", summary.OutputDir, wantDir)
	}
	for _, name := range artifacts.Files {
		if _, err := os.Stat(filepath.Join(wantDir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}
	if got := len(readTranscript(t, wantDir)); got != 6 {
		t.Fatalf("transcript.json has %d turns, want 6", got)
	}

	list, err := env.run(t, "episodes", "list")
	if err != nil {
		t.Fatalf("episodes list: %v", err)
	}
	requireContains(t, list, "Grid Storage")
	requireContains(t, list, "complete")

	show, err := env.run(t, "episodes", "show", summary.RunID[:8])
	if err != nil {
		t.Fatalf("episodes show: %v", err)
	}
	requireContains(t, show, summary.RunID)
	requireContains(t, show, wantDir)
	requireContains(t, show, "openai-compatible/outline-model")
}

func TestGenerateFinalMarkerOnlyOnLastSegment(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "generate", "--briefing", "Ocean currents", "--segments", "3"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	var finals []int
	var segments int
	for _, prompt := range env.server.requests() {
		if !strings.Contains(prompt, "The current segment is") {
			continue
		}
		if strings.Contains(prompt, "This is the final segment") {
			finals = append(finals, segments)
		}
		segments++
	}
	if segments != 3 || !slices.Equal(finals, []int{2}) {
		t.Fatalf("segments=%d finals=%v, want 3 and [2]", segments, finals)
	}
}

func TestGenerateAbortKeepsPartialTranscript(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.failSegment("Segment 2")

	out, err := env.run(t, "generate", "--briefing", "Volcanoes", "--name", "Volcanoes", "--segments", "3", "--json")
	if err == nil {
		t.Fatal("expected generate to fail")
	}
	summary := decodeSummary(t, out)
	if summary.Status != services.StatusPartial || summary.State != "failed" {
		t.Fatalf("unexpected status %s/%s", summary.Status, summary.State)
	}
	if got := len(readTranscript(t, summary.OutputDir)); got != 3 {
		t.Fatalf("partial transcript has %d turns, want 3", got)
	}

	list, err := env.run(t, "episodes", "list", "--status", "partial", "--json")
	if err != nil {
		t.Fatalf("episodes list: %v", err)
	}
	requireContains(t, list, summary.RunID)
	requireContains(t, list, `"progress": "2/3"`)
}

func TestGenerateSkipFailedSegments(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.failSegment("Segment 2")

	out, err := env.run(t, "generate", "--briefing", "Glaciers", "--segments", "3", "--skip-failed-segments", "--json")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	summary := decodeSummary(t, out)
	if summary.Status != "partial" || summary.State != "complete" {
		t.Fatalf("unexpected status %s/%s", summary.Status, summary.State)
	}
	if !slices.Equal(summary.Skipped, []int{1}) || summary.Turns != 6 {
		t.Fatalf("skipped=%v turns=%d", summary.Skipped, summary.Turns)
	}
	requireContains(t, testsupport.ReadFile(t, filepath.Join(summary.OutputDir, "transcript.json")), `"skipped_segments"`)
}

func TestGenerateRequiresBriefing(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "generate", "--name", "Nothing")
	if err == nil || !strings.Contains(err.Error(), "briefing required") {
		t.Fatalf("expected briefing error, got %v", err)
	}
	if n := len(env.server.requests()); n != 0 {
		t.Fatalf("expected no model calls, got %d", n)
	}
}

func TestGenerateRejectsUnknownProfile(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "generate", "--briefing", "x", "--speakers", "nobody")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGeneratePublishRequiresBucket(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "generate", "--briefing", "Tides", "--segments", "1", "--publish", "--json")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	summary := decodeSummary(t, out)
	if summary.Status != "complete" || summary.OutputDir == "" {
		t.Fatalf("episode should still be written locally: %+v", summary)
	}
}

func TestOutlineCommandRendersTable(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "outline", "--briefing", "Renewable Energy", "--segments", "2")
	if err != nil {
		t.Fatalf("outline failed: %v", err)
	}
	requireContains(t, out, "Segment 1")
	requireContains(t, out, "Segment 2")
	requireContains(t, out, "Medium")
	requireContains(t, out, "Dr. Sarah Chen, Marcus Rivera")

	list, err := env.run(t, "episodes", "list")
	if err != nil {
		t.Fatalf("episodes list: %v", err)
	}
	requireContains(t, list, "No episodes recorded")
}
