package episode_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"podscript/internal/episode"
	"podscript/internal/podcast"
	"podscript/internal/prompt"
	"podscript/internal/services/llm"
	"podscript/internal/testsupport"
)

var fixedClock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func registry(t *testing.T) *prompt.Registry {
	t.Helper()
	reg, err := prompt.Default()
	if err != nil {
		t.Fatalf("prompt.Default: %v", err)
	}
	return reg
}

func invoker(backend llm.Backend) *llm.Invoker {
	return llm.NewInvoker(backend, llm.WithRetryPolicy(llm.RetryPolicy{MaxAttempts: 1}))
}

func speakerNames() []string {
	return podcast.SpeakerNames(testsupport.Speakers())
}

func outlineReply(n int) testsupport.Reply {
	return testsupport.Reply{Content: testsupport.OutlineJSON(testsupport.Segments(n)...)}
}

func turnsReply(n int) testsupport.Reply {
	return testsupport.Reply{Content: testsupport.TranscriptJSON(testsupport.Turns(n, speakerNames()...)...)}
}

func isOutlinePrompt(req llm.Request) bool {
	return strings.Contains(req.User, "Create an outline")
}

// scriptedRespond answers outline prompts with n segments and transcript
// prompts with turns dialogue lines.
func scriptedRespond(segments, turns int) func(llm.Request) (string, error) {
	return func(req llm.Request) (string, error) {
		if isOutlinePrompt(req) {
			return testsupport.OutlineJSON(testsupport.Segments(segments)...), nil
		}
		return testsupport.TranscriptJSON(testsupport.Turns(turns, speakerNames()...)...), nil
	}
}

// blockingBackend waits for cancellation on every call.
type blockingBackend struct{}

func (blockingBackend) Name() string  { return "blocking" }
func (blockingBackend) Model() string { return "blocking-model" }
func (blockingBackend) Complete(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type observedEvent struct {
	kind  string
	index int
	turns int
}

type recordingObserver struct {
	events []observedEvent
}

func (o *recordingObserver) SegmentStarted(i int) {
	o.events = append(o.events, observedEvent{kind: "started", index: i})
}

func (o *recordingObserver) SegmentCompleted(i, turns int) {
	o.events = append(o.events, observedEvent{kind: "completed", index: i, turns: turns})
}

func (o *recordingObserver) SegmentFailed(i int, _ error) {
	o.events = append(o.events, observedEvent{kind: "failed", index: i})
}

func baseJob() episode.Job {
	return episode.Job{
		Name:        "Renewable Energy",
		Briefing:    "Discuss the future of renewable energy",
		Context:     []string{"Solar capacity doubled in five years.", "Offshore wind costs keep falling."},
		Speakers:    testsupport.Speakers(),
		NumSegments: 3,
		MinTurns:    3,
		Policy:      episode.PolicyAbort,
	}
}
