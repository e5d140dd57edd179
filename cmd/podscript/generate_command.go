package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func addEpisodeFlags(cmd *cobra.Command, in *episodeInput) {
	flags := cmd.Flags()
	flags.StringVarP(&in.Briefing, "briefing", "b", "", "Episode briefing text")
	flags.StringVar(&in.BriefingFile, "briefing-file", "", "Read the briefing from a file")
	flags.StringArrayVar(&in.Content, "content", nil, "Source material for the episode (repeatable)")
	flags.StringArrayVar(&in.ContentFiles, "content-file", nil, "Read source material from a file (repeatable)")
	flags.StringVarP(&in.Name, "name", "n", "", "Episode name (defaults to the start of the briefing)")
	flags.StringVar(&in.SpeakerProfile, "speakers", "", "Speaker profile name")
	flags.StringVarP(&in.EpisodeProfile, "episode-profile", "p", "", "Episode profile name")
	flags.StringVar(&in.Difficulty, "difficulty", "", "Language-learning difficulty (easy, medium, hard, expert)")
	flags.IntVar(&in.Segments, "segments", 0, "Number of outline segments")
	flags.StringVar(&in.OutlineProvider, "outline-provider", "", "Outline backend provider")
	flags.StringVar(&in.OutlineModel, "outline-model", "", "Outline model")
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var in episodeInput
	var publish bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an outline and transcript for one episode",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.release(cmd)

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			plan, err := planEpisode(cfg, catalog, in)
			if err != nil {
				return err
			}

			progress := cmd.ErrOrStderr()
			if jsonOutput || !isTerminal(progress) {
				progress = nil
			}
			p, err := ctx.newPipeline(cmd.Context(), progress)
			if err != nil {
				return err
			}

			result, runErr := p.runner.Run(cmd.Context(), plan.Job)
			summary, writeErr := p.finish(cmd.Context(), plan, result, runErr)
			var publishErr error
			if writeErr == nil && runErr == nil && (publish || cfg.Publish.Enabled) {
				publishErr = p.publish(cmd.Context(), &summary)
			}

			if jsonOutput {
				if err := writeJSON(cmd, summary); err != nil {
					return err
				}
			} else if summary.RunID != "" && (runErr == nil || summary.Segments > 0) {
				printSummary(cmd.OutOrStdout(), summary)
			}

			if runErr != nil {
				return fmt.Errorf("episode %q: %w", plan.Job.Name, errors.Join(runErr, writeErr))
			}
			if writeErr != nil {
				return fmt.Errorf("write artifacts: %w", writeErr)
			}
			if publishErr != nil {
				return fmt.Errorf("publish: %w", publishErr)
			}
			return nil
		},
	}

	addEpisodeFlags(cmd, &in)
	flags := cmd.Flags()
	flags.IntVar(&in.Turns, "turns", 0, "Minimum dialogue turns per segment")
	flags.StringVarP(&in.OutputDir, "output-dir", "o", "", "Directory for the episode files")
	flags.StringVar(&in.TranscriptProvider, "transcript-provider", "", "Transcript backend provider")
	flags.StringVar(&in.TranscriptModel, "transcript-model", "", "Transcript model")
	flags.BoolVar(&in.SkipFailedSegments, "skip-failed-segments", false, "Skip segments that fail validation instead of aborting")
	flags.BoolVar(&publish, "publish", false, "Upload the episode to the configured GCS bucket")
	flags.BoolVar(&jsonOutput, "json", false, "Print the run summary as JSON")
	return cmd
}
