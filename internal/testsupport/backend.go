package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"podscript/internal/podcast"
	"podscript/internal/services/llm"
)

// Reply is one scripted backend response.
type Reply struct {
	Content string
	Err     error
}

// FakeBackend is an llm.Backend that replays scripted replies in order and
// records every request. When the script runs out, Respond (if set) is used.
type FakeBackend struct {
	Provider string
	ModelID  string
	Respond  func(req llm.Request) (string, error)

	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
}

// NewFakeBackend returns a backend that will answer with replies in order.
func NewFakeBackend(replies ...Reply) *FakeBackend {
	return &FakeBackend{Provider: "fake", ModelID: "fake-model", replies: replies}
}

// Push appends more scripted replies.
func (f *FakeBackend) Push(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *FakeBackend) Name() string  { return f.Provider }
func (f *FakeBackend) Model() string { return f.ModelID }

// Complete implements llm.Backend.
func (f *FakeBackend) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var next *Reply
	if len(f.replies) > 0 {
		next = &f.replies[0]
		f.replies = f.replies[1:]
	}
	respond := f.Respond
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if next != nil {
		return next.Content, next.Err
	}
	if respond != nil {
		return respond(req)
	}
	return "", fmt.Errorf("fake backend: no scripted reply for request %d", f.Calls())
}

// Calls returns the number of requests received.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requests returns a copy of the recorded requests.
func (f *FakeBackend) Requests() []llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.Request(nil), f.requests...)
}

// OutlineJSON encodes segments as an outline reply.
func OutlineJSON(segments ...podcast.Segment) string {
	data, _ := json.Marshal(map[string]any{"segments": segments})
	return string(data)
}

// TranscriptJSON encodes turns as a transcript reply.
func TranscriptJSON(turns ...podcast.Turn) string {
	data, _ := json.Marshal(map[string]any{"transcript": turns})
	return string(data)
}

// Segments builds n medium segments named "Segment 1".."Segment n".
func Segments(n int) []podcast.Segment {
	out := make([]podcast.Segment, n)
	for i := range out {
		out[i] = podcast.Segment{
			Name:        fmt.Sprintf("Segment %d", i+1),
			Description: fmt.Sprintf("Discussion point %d", i+1),
			Size:        podcast.SizeMedium,
		}
	}
	return out
}

// Turns builds n turns alternating between speakers.
func Turns(n int, speakers ...string) []podcast.Turn {
	out := make([]podcast.Turn, n)
	for i := range out {
		speaker := speakers[i%len(speakers)]
		out[i] = podcast.Turn{Speaker: speaker, Dialogue: fmt.Sprintf("%s line %d", strings.Fields(speaker)[0], i+1)}
	}
	return out
}

// Speakers returns a two-person panel used across tests.
func Speakers() []podcast.Speaker {
	return []podcast.Speaker{
		{Name: "Dr. Sarah Chen", Backstory: "Climate scientist studying grid storage.", Personality: "Precise and warm"},
		{Name: "Marcus Rivera", Backstory: "Energy journalist.", Personality: "Curious and skeptical"},
	}
}
