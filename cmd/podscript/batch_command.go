package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"podscript/internal/config"
	"podscript/internal/episode"
	"podscript/internal/profiles"
)

// batchFile is the jobs file read by "podscript batch". Defaults apply to
// every episode that leaves the field empty.
type batchFile struct {
	Concurrency int            `yaml:"concurrency"`
	Defaults    episodeInput   `yaml:"defaults"`
	Episodes    []episodeInput `yaml:"episodes"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var concurrency int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "batch <jobs.yaml>",
		Short: "Generate several episodes concurrently from a jobs file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.release(cmd)

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			batch, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			plans, err := planBatch(cfg, catalog, batch)
			if err != nil {
				return err
			}

			limit := firstPositive(concurrency, batch.Concurrency, cfg.Generation.BatchConcurrency)
			p, err := ctx.newPipeline(cmd.Context(), nil)
			if err != nil {
				return err
			}
			jobs := make([]episode.Job, len(plans))
			for i, plan := range plans {
				jobs[i] = plan.Job
			}
			outcomes, runErr := p.runner.RunBatch(cmd.Context(), jobs, limit)

			summaries := make([]episodeSummary, len(outcomes))
			var writeErrs []error
			for i, outcome := range outcomes {
				summary, err := p.finish(cmd.Context(), plans[i], outcome.Result, outcome.Err)
				if err != nil {
					writeErrs = append(writeErrs, fmt.Errorf("job %d (%s): write artifacts: %w", i+1, plans[i].Job.Name, err))
				}
				summaries[i] = summary
			}

			if jsonOutput {
				if err := writeJSON(cmd, summaries); err != nil {
					return err
				}
			} else {
				fmt.Fprint(cmd.OutOrStdout(), renderBatch(summaries))
			}
			return errors.Join(runErr, errors.Join(writeErrs...))
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Episodes generated at once (defaults to the file, then generation.batch_concurrency)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print run summaries as JSON")
	return cmd
}

func loadBatchFile(path string) (batchFile, error) {
	var batch batchFile
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return batch, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return batch, fmt.Errorf("read jobs file: %w", err)
	}
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return batch, fmt.Errorf("parse jobs file %s: %w", path, err)
	}
	if len(batch.Episodes) == 0 {
		return batch, fmt.Errorf("jobs file %s lists no episodes", path)
	}
	return batch, nil
}

// planBatch resolves every entry up front so a typo in the last entry fails
// before any tokens are spent. Two entries may not share an output directory.
func planBatch(cfg *config.Config, catalog *profiles.Catalog, batch batchFile) ([]plannedEpisode, error) {
	plans := make([]plannedEpisode, 0, len(batch.Episodes))
	dirs := make(map[string]int, len(batch.Episodes))
	for i, entry := range batch.Episodes {
		plan, err := planEpisode(cfg, catalog, mergeInput(entry, batch.Defaults))
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		if err := plan.Job.Validate(); err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i+1, plan.Job.Name, err)
		}
		if prev, ok := dirs[plan.OutputDir]; ok {
			return nil, fmt.Errorf("job %d (%s): output dir %s already used by job %d", i+1, plan.Job.Name, plan.OutputDir, prev)
		}
		dirs[plan.OutputDir] = i + 1
		plans = append(plans, plan)
	}
	return plans, nil
}

// mergeInput fills empty fields of in from defaults. Briefings, names, and
// output directories are per episode and never inherited.
func mergeInput(in, defaults episodeInput) episodeInput {
	pick := func(v, d string) string {
		if v != "" {
			return v
		}
		return d
	}
	in.SpeakerProfile = pick(in.SpeakerProfile, defaults.SpeakerProfile)
	in.EpisodeProfile = pick(in.EpisodeProfile, defaults.EpisodeProfile)
	in.Difficulty = pick(in.Difficulty, defaults.Difficulty)
	in.OutlineProvider = pick(in.OutlineProvider, defaults.OutlineProvider)
	in.OutlineModel = pick(in.OutlineModel, defaults.OutlineModel)
	in.TranscriptProvider = pick(in.TranscriptProvider, defaults.TranscriptProvider)
	in.TranscriptModel = pick(in.TranscriptModel, defaults.TranscriptModel)
	in.Segments = firstPositive(in.Segments, defaults.Segments)
	in.Turns = firstPositive(in.Turns, defaults.Turns)
	in.SkipFailedSegments = in.SkipFailedSegments || defaults.SkipFailedSegments
	if len(in.Content) == 0 && len(in.ContentFiles) == 0 {
		in.Content = defaults.Content
		in.ContentFiles = defaults.ContentFiles
	}
	return in
}

func renderBatch(summaries []episodeSummary) string {
	rows := make([][]string, 0, len(summaries))
	for i, s := range summaries {
		status := s.Status
		if s.Error != "" && s.RunID == "" {
			status = "not started"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			shortID(s.RunID),
			s.Name,
			status,
			strconv.Itoa(s.Segments),
			strconv.Itoa(s.Turns),
			s.OutputDir,
		})
	}
	return renderTable(
		[]string{"#", "Run", "Episode", "Status", "Segments", "Turns", "Output"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
