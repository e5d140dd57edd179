package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"podscript/internal/store"
	"podscript/internal/textutil"
)

func newEpisodesCommand(ctx *commandContext) *cobra.Command {
	episodesCmd := &cobra.Command{
		Use:     "episodes",
		Aliases: []string{"history"},
		Short:   "Inspect and manage episode run history",
	}

	episodesCmd.AddCommand(newEpisodesListCommand(ctx))
	episodesCmd.AddCommand(newEpisodesShowCommand(ctx))
	episodesCmd.AddCommand(newEpisodesRemoveCommand(ctx))
	episodesCmd.AddCommand(newEpisodesClearCommand(ctx))

	return episodesCmd
}

func newEpisodesListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List episode runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(st *store.Store) error {
				episodes, err := st.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					views := make([]episodeView, 0, len(episodes))
					for _, ep := range episodes {
						views = append(views, newEpisodeView(ep))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(episodes) == 0 {
					fmt.Fprintln(out, "No episodes recorded")
					return nil
				}
				rows := make([][]string, 0, len(episodes))
				for _, ep := range episodes {
					rows = append(rows, []string{
						shortID(ep.RunID),
						ep.Name,
						statusLabel(out, ep.Status),
						textutil.Title(ep.State),
						ep.Progress(),
						ep.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Run", "Episode", "Status", "State", "Segment", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status: running, complete, partial, failed (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	return cmd
}

func newEpisodesShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run; any unique run id prefix works",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st *store.Store) error {
				ep, err := st.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, newEpisodeView(ep))
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Run", ep.RunID},
					{"Episode", ep.Name},
					{"Status", statusLabel(out, ep.Status)},
					{"State", textutil.Title(ep.State)},
					{"Segment", ep.Progress()},
					{"Outline model", ep.OutlineProvider + "/" + ep.OutlineModel},
					{"Transcript model", ep.TranscriptProvider + "/" + ep.TranscriptModel},
				}
				if len(ep.Skipped) > 0 {
					rows = append(rows, []string{"Skipped", joinInts(ep.Skipped)})
				}
				if ep.OutputDir != "" {
					rows = append(rows, []string{"Output", ep.OutputDir})
				}
				if ep.ErrorMessage != "" {
					rows = append(rows, []string{"Error", ep.ErrorMessage})
				}
				rows = append(rows,
					[]string{"Created", ep.CreatedAt.Local().Format(time.RFC3339)},
					[]string{"Updated", ep.UpdatedAt.Local().Format(time.RFC3339)},
				)
				fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func newEpisodesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <run-id>...",
		Short: "Remove runs from history; episode files are left in place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st *store.Store) error {
				out := cmd.OutOrStdout()
				for _, arg := range args {
					ep, err := st.Resolve(cmd.Context(), arg)
					if err != nil {
						return err
					}
					if !ep.Finished() {
						return fmt.Errorf("episode %s is still running", shortID(ep.RunID))
					}
					removed, err := st.Remove(cmd.Context(), ep.RunID)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed %s (%s)\n", shortID(ep.RunID), ep.Name)
					}
				}
				return nil
			})
		},
	}
}

func newEpisodesClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every finished run from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st *store.Store) error {
				removed, err := st.ClearFinished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished episodes\n", removed)
				return nil
			})
		},
	}
}

// episodeView is the --json shape of a history row.
type episodeView struct {
	RunID              string    `json:"run_id"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	State              string    `json:"state"`
	Progress           string    `json:"progress"`
	Skipped            []int     `json:"skipped_segments,omitempty"`
	OutputDir          string    `json:"output_dir,omitempty"`
	Error              string    `json:"error,omitempty"`
	OutlineProvider    string    `json:"outline_provider"`
	OutlineModel       string    `json:"outline_model"`
	TranscriptProvider string    `json:"transcript_provider"`
	TranscriptModel    string    `json:"transcript_model"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func newEpisodeView(ep *store.Episode) episodeView {
	return episodeView{
		RunID:              ep.RunID,
		Name:               ep.Name,
		Status:             string(ep.Status),
		State:              ep.State,
		Progress:           ep.Progress(),
		Skipped:            ep.Skipped,
		OutputDir:          ep.OutputDir,
		Error:              ep.ErrorMessage,
		OutlineProvider:    ep.OutlineProvider,
		OutlineModel:       ep.OutlineModel,
		TranscriptProvider: ep.TranscriptProvider,
		TranscriptModel:    ep.TranscriptModel,
		CreatedAt:          ep.CreatedAt,
		UpdatedAt:          ep.UpdatedAt,
	}
}

var knownStatuses = []store.Status{store.StatusRunning, store.StatusComplete, store.StatusPartial, store.StatusFailed}

func parseStatuses(values []string) ([]store.Status, error) {
	statuses := make([]store.Status, 0, len(values))
	for _, value := range values {
		status := store.Status(strings.ToLower(strings.TrimSpace(value)))
		if !slices.Contains(knownStatuses, status) {
			return nil, fmt.Errorf("unknown status %q (expected running, complete, partial, or failed)", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
