package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"podscript/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipModels bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, the episode store, profiles, and model backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var opts []preflight.Option
			if skipModels {
				opts = append(opts, preflight.WithoutBackends())
			}
			results := preflight.RunAll(cmd.Context(), cfg, opts...)

			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, checkLabel(r.Passed, colorize), r.Detail})
			}
			fmt.Fprint(out, renderTable([]string{"Check", "Result", "Detail"}, rows, nil))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipModels, "skip-models", false, "Build backends from config without sending probe requests")
	return cmd
}

func checkLabel(passed, colorize bool) string {
	label, color := "FAIL", text.FgRed
	if passed {
		label, color = "ok", text.FgGreen
	}
	if colorize {
		return color.Sprint(label)
	}
	return label
}
