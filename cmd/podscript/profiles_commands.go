package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"podscript/internal/profiles"
	"podscript/internal/services"
)

func newProfilesCommand(ctx *commandContext) *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect speaker and episode profiles",
	}
	profilesCmd.AddCommand(newProfilesListCommand(ctx))
	profilesCmd.AddCommand(newProfilesShowCommand(ctx))
	return profilesCmd
}

func newProfilesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List speaker and episode profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			speakerRows := make([][]string, 0)
			for _, name := range catalog.SpeakerNames() {
				profile, err := catalog.Speaker(name)
				if err != nil {
					return err
				}
				speakerRows = append(speakerRows, []string{
					name,
					strconv.Itoa(len(profile.Speakers)),
					speakerNames(profile.Speakers),
					catalog.SpeakerSource(name),
				})
			}
			fmt.Fprintln(out, "Speaker profiles")
			fmt.Fprint(out, renderTable(
				[]string{"Name", "Count", "Speakers", "Source"},
				speakerRows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))

			episodeRows := make([][]string, 0)
			for _, name := range catalog.EpisodeNames() {
				profile, err := catalog.Episode(name)
				if err != nil {
					return err
				}
				episodeRows = append(episodeRows, []string{
					name,
					profile.SpeakerConfig,
					stageLabel(profile.OutlineProvider, profile.OutlineModel),
					stageLabel(profile.TranscriptProvider, profile.TranscriptModel),
					segmentsLabel(profile.NumSegments),
					catalog.EpisodeSource(name),
				})
			}
			fmt.Fprintln(out, "\nEpisode profiles")
			fmt.Fprint(out, renderTable(
				[]string{"Name", "Speakers", "Outline", "Transcript", "Segments", "Source"},
				episodeRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newProfilesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a profile as YAML",
		Long:  "Print a profile as YAML. A name used by both a speaker and an episode profile prints both.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.catalog()
			if err != nil {
				return err
			}
			name := args[0]
			out := cmd.OutOrStdout()
			found := false

			if speakers, err := catalog.Speaker(name); err == nil {
				found = true
				doc := map[string]any{"speaker_profiles": map[string]any{name: speakers}}
				if err := printYAML(cmd, "# "+catalog.SpeakerSource(name), doc); err != nil {
					return err
				}
			} else if !errors.Is(err, services.ErrNotFound) {
				return err
			}

			if ep, err := catalog.Episode(name); err == nil {
				if found {
					fmt.Fprintln(out, "---")
				}
				found = true
				doc := map[string]any{"episode_profiles": map[string]profiles.EpisodeProfile{name: ep}}
				if err := printYAML(cmd, "# "+catalog.EpisodeSource(name), doc); err != nil {
					return err
				}
			} else if !errors.Is(err, services.ErrNotFound) {
				return err
			}

			if !found {
				return services.Wrap(services.ErrNotFound, "profiles", "show",
					fmt.Sprintf("no speaker or episode profile named %q", name), nil)
			}
			return nil
		},
	}
}

func printYAML(cmd *cobra.Command, header string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, header)
	_, err = out.Write(data)
	return err
}

func stageLabel(provider, model string) string {
	switch {
	case provider == "" && model == "":
		return "(config)"
	case model == "":
		return provider
	case provider == "":
		return model
	default:
		return provider + "/" + model
	}
}

func segmentsLabel(n int) string {
	if n <= 0 {
		return "(config)"
	}
	return strconv.Itoa(n)
}
