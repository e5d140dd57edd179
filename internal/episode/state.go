package episode

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"podscript/internal/logging"
)

// State is a node of the episode state machine.
type State string

const (
	StateIdle             State = "idle"
	StateOutlineRequested State = "outline_requested"
	StateOutlinePending   State = "outline_pending"
	StateOutlineReady     State = "outline_ready"
	StateSegmentPending   State = "segment_pending"
	StateSegmentReady     State = "segment_ready"
	StateComplete         State = "complete"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

var allowedTransitions = map[State][]State{
	StateIdle:             {StateOutlineRequested},
	StateOutlineRequested: {StateOutlinePending},
	StateOutlinePending:   {StateOutlineReady, StateFailed},
	StateOutlineReady:     {StateSegmentPending, StateComplete},
	// A skipped segment moves straight on to the next pending segment, or to
	// Complete when it was the last one.
	StateSegmentPending: {StateSegmentReady, StateSegmentPending, StateComplete, StateFailed},
	StateSegmentReady:   {StateSegmentPending, StateComplete},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// RunMeta describes the run a transition belongs to.
type RunMeta struct {
	RunID              string
	Name               string
	OutputDir          string
	OutlineProvider    string
	OutlineModel       string
	TranscriptProvider string
	TranscriptModel    string
}

// Transition is published to every StateSink when the machine moves.
type Transition struct {
	Meta         RunMeta
	From         State
	To           State
	SegmentIndex int
	SegmentCount int
	Skipped      []int
	Status       string
	Err          error
	At           time.Time
}

// StateSink observes transitions. Publish errors are logged and never stop a
// run.
type StateSink interface {
	Publish(ctx context.Context, t Transition) error
}

// SinkFunc adapts a function to StateSink.
type SinkFunc func(ctx context.Context, t Transition) error

func (f SinkFunc) Publish(ctx context.Context, t Transition) error { return f(ctx, t) }

// machine tracks one run's state. It is owned by a single Runner.Run call.
type machine struct {
	mu           sync.Mutex
	meta         RunMeta
	state        State
	segmentIndex int
	segmentCount int
	skipped      []int
	sinks        []StateSink
	logger       *slog.Logger
	now          func() time.Time
}

func newMachine(meta RunMeta, sinks []StateSink, logger *slog.Logger, now func() time.Time) *machine {
	if now == nil {
		now = time.Now
	}
	return &machine{
		meta:         meta,
		state:        StateIdle,
		segmentIndex: -1,
		sinks:        sinks,
		logger:       logger,
		now:          now,
	}
}

func (m *machine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *machine) setSegmentCount(n int) {
	m.mu.Lock()
	m.segmentCount = n
	m.mu.Unlock()
}

func (m *machine) skip(index int) {
	m.mu.Lock()
	m.skipped = append(m.skipped, index)
	m.mu.Unlock()
}

func (m *machine) skippedSegments() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.skipped...)
}

// advance moves to the next state and publishes the transition. index is the
// segment index for segment states and -1 otherwise.
func (m *machine) advance(ctx context.Context, to State, index int, status string, cause error) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("episode %s: illegal state transition %s -> %s", m.meta.RunID, from, to)
	}
	m.state = to
	if index >= 0 {
		m.segmentIndex = index
	}
	t := Transition{
		Meta:         m.meta,
		From:         from,
		To:           to,
		SegmentIndex: m.segmentIndex,
		SegmentCount: m.segmentCount,
		Skipped:      append([]int(nil), m.skipped...),
		Status:       status,
		Err:          cause,
		At:           m.now().UTC(),
	}
	sinks := m.sinks
	m.mu.Unlock()

	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, t); err != nil {
			logging.WarnWithContext(m.logger, "state sink rejected transition", "state_sink_error",
				logging.String("to_state", string(to)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the run-history database"),
				logging.String(logging.FieldImpact, "run history may be stale for this episode"),
			)
		}
	}
	return nil
}
