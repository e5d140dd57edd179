package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podscript/internal/episode"
	"podscript/internal/podcast"
	"podscript/internal/textutil"
)

func newOutlineCommand(ctx *commandContext) *cobra.Command {
	var in episodeInput
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Generate only the outline for an episode",
		Long: "Generate only the outline for an episode and print it.\n\n" +
			"Nothing is written to the output directory or the run history; use this to\n" +
			"try briefings and outline models before spending tokens on a transcript.",
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
			if err := plan.Job.Validate(); err != nil {
				return err
			}
			p, err := ctx.newPipeline(cmd.Context(), nil)
			if err != nil {
				return err
			}
			gens, err := p.source.Generators(plan.Job)
			if err != nil {
				return err
			}
			outline, err := gens.Outline.Generate(cmd.Context(), episode.OutlineRequest{
				Briefing:    plan.Job.Briefing,
				Context:     plan.Job.Context,
				Speakers:    plan.Job.Speakers,
				NumSegments: plan.Job.NumSegments,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, outline)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", plan.Job.Name, speakerNames(plan.Job.Speakers))
			fmt.Fprint(out, renderOutline(outline))
			return nil
		},
	}

	addEpisodeFlags(cmd, &in)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the outline as JSON")
	return cmd
}

func renderOutline(outline podcast.Outline) string {
	rows := make([][]string, 0, len(outline.Segments))
	for i, seg := range outline.Segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			seg.Name,
			textutil.Title(string(seg.Size)),
			seg.Description,
		})
	}
	return renderTable(
		[]string{"#", "Segment", "Size", "Description"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}
