package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"podscript/internal/artifacts"
	"podscript/internal/config"
	"podscript/internal/episode"
	"podscript/internal/logging"
	"podscript/internal/prompt"
	"podscript/internal/store"
)

// pipeline is everything a command needs to run and persist episodes.
type pipeline struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
	source *episode.ConfigSource
	runner *episode.Runner
	writer *artifacts.Writer
}

func (c *commandContext) newPipeline(ctx context.Context, progress io.Writer) (*pipeline, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	if err := c.startTracing(ctx); err != nil {
		return nil, err
	}
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	registry, err := prompt.Default()
	if err != nil {
		return nil, err
	}

	sinks := []episode.StateSink{episode.StoreSink{Store: st}}
	if progress != nil {
		sinks = append(sinks, progressSink(progress))
	}
	source := episode.NewConfigSource(cfg, registry, episode.WithSourceLogger(logger))
	return &pipeline{
		cfg:    cfg,
		store:  st,
		logger: logger,
		source: source,
		runner: episode.NewRunner(source,
			episode.WithSinks(sinks...),
			episode.WithRunnerLogger(logger),
		),
		writer: artifacts.NewWriter(logger),
	}, nil
}

// progressSink prints one line per transition for interactive terminals.
func progressSink(w io.Writer) episode.StateSink {
	return episode.SinkFunc(func(_ context.Context, t episode.Transition) error {
		switch t.To {
		case episode.StateOutlinePending:
			fmt.Fprintf(w, "%s: generating outline\n", t.Meta.Name)
		case episode.StateOutlineReady:
			fmt.Fprintf(w, "%s: outline ready (%d segments)\n", t.Meta.Name, t.SegmentCount)
		case episode.StateSegmentPending:
			fmt.Fprintf(w, "%s: segment %d/%d\n", t.Meta.Name, t.SegmentIndex+1, t.SegmentCount)
		case episode.StateComplete, episode.StateFailed:
			fmt.Fprintf(w, "%s: %s\n", t.Meta.Name, t.Status)
		}
		return nil
	})
}

// episodeSummary is the --json shape of one finished run.
type episodeSummary struct {
	RunID     string   `json:"run_id"`
	Name      string   `json:"name"`
	Profile   string   `json:"episode_profile,omitempty"`
	Status    string   `json:"status"`
	State     string   `json:"state"`
	Segments  int      `json:"segments"`
	Turns     int      `json:"turns"`
	Skipped   []int    `json:"skipped_segments,omitempty"`
	OutputDir string   `json:"output_dir,omitempty"`
	Files     []string `json:"files,omitempty"`
	Published []string `json:"published,omitempty"`
	Duration  string   `json:"duration"`
	Error     string   `json:"error,omitempty"`
}

// finish writes artifacts for whatever the run produced and records the
// output directory. A run that never got an outline writes nothing.
func (p *pipeline) finish(ctx context.Context, plan plannedEpisode, result episode.Result, runErr error) (episodeSummary, error) {
	summary := episodeSummary{
		RunID:    result.RunID,
		Name:     result.Name,
		Profile:  plan.Profile,
		Status:   result.Status,
		State:    string(result.State),
		Segments: len(result.Outline.Segments),
		Turns:    result.Transcript.Len(),
		Skipped:  result.Skipped,
		Duration: result.Duration.Round(time.Millisecond).String(),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}
	if len(result.Outline.Segments) == 0 {
		return summary, nil
	}

	files, err := p.writer.Write(plan.OutputDir, artifacts.Episode{
		RunID:      result.RunID,
		Name:       result.Name,
		Briefing:   plan.Job.Briefing,
		Content:    plan.Content,
		Speakers:   plan.Job.Speakers,
		Outline:    result.Outline,
		Transcript: result.Transcript,
		Skipped:    result.Skipped,
	})
	summary.Files = files
	if err != nil {
		return summary, err
	}
	summary.OutputDir = plan.OutputDir
	if err := p.store.SetOutputDir(ctx, result.RunID, plan.OutputDir); err != nil {
		logging.WarnWithContext(p.logger, "failed to record output directory", "store_update",
			logging.String(logging.FieldRunID, result.RunID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "episodes show will not list the output directory"),
		)
	}
	return summary, nil
}

// publish uploads a finished episode. Failed runs are never published.
func (p *pipeline) publish(ctx context.Context, summary *episodeSummary) error {
	if summary.OutputDir == "" || summary.Status == episode.StatusFailed {
		return nil
	}
	publisher, err := artifacts.NewGCSPublisher(ctx, p.cfg.Publish, artifacts.WithPublisherLogger(p.logger))
	if err != nil {
		return err
	}
	defer publisher.Close()
	uris, err := publisher.Publish(ctx, summary.OutputDir, p.cfg.Publish.Prefix)
	summary.Published = uris
	return err
}

func printSummary(w io.Writer, s episodeSummary) {
	fmt.Fprintf(w, "Episode %q %s (run %s)\n", s.Name, s.Status, shortID(s.RunID))
	if s.Profile != "" {
		fmt.Fprintf(w, "  Profile:  %s\n", s.Profile)
	}
	segments := fmt.Sprintf("%d", s.Segments)
	if len(s.Skipped) > 0 {
		segments += fmt.Sprintf(" (skipped %v)", s.Skipped)
	}
	fmt.Fprintf(w, "  Segments: %s\n", segments)
	fmt.Fprintf(w, "  Turns:    %d\n", s.Turns)
	if s.OutputDir != "" {
		fmt.Fprintf(w, "  Output:   %s\n", s.OutputDir)
	}
	for _, uri := range s.Published {
		fmt.Fprintf(w, "  Uploaded: %s\n", uri)
	}
	fmt.Fprintf(w, "  Duration: %s\n", s.Duration)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
