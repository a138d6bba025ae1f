package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harunnryd/sapa/pkg/runner"
	"github.com/harunnryd/sapa/pkg/sapa"
	"github.com/harunnryd/sapa/pkg/store"
)

func buildChatCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a typed conversation",
		Example: `  sapa chat
  sapa chat --config configs/sapa.example.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), flags, sapa.Options{})
		},
	}
}

func buildVoiceCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "voice",
		Short: "Start a spoken conversation",
		Long: `Record each utterance with audio.record, transcribe it with vendors.stt,
and speak every reply through vendors.tts and audio.play.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), flags, sapa.Options{Voice: true})
		},
	}
}

func buildImagineCmd(flags *rootFlags) *cobra.Command {
	var voice bool
	cmd := &cobra.Command{
		Use:   "imagine",
		Short: "Turn every prompt into a generated image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), flags, sapa.Options{Voice: voice, Imagine: true})
		},
	}
	cmd.Flags().BoolVar(&voice, "voice", false, "Speak prompts instead of typing them")
	return cmd
}

func runSession(ctx context.Context, flags *rootFlags, opts sapa.Options) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if !flags.quiet {
		runner.PrintBanner(os.Stdout, cfg.Assistant.Name, true)
	}
	opts.In = os.Stdin
	opts.Out = os.Stdout
	a, err := sapa.Build(ctx, cfg, opts)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

func buildToolsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the assistant can invoke",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err := sapa.Build(cmd.Context(), cfg, sapa.Options{In: strings.NewReader(""), Out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer a.Close()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tARGS\tDESCRIPTION")
			for _, spec := range a.Registry.List() {
				var params []string
				for _, p := range spec.Params {
					name := p.Name
					if !p.Required {
						name += "?"
					}
					params = append(params, name+":"+string(p.Type))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, strings.Join(params, ","), spec.Description)
			}
			return w.Flush()
		},
	}
}

func buildHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent tool invocations from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.Observability.JournalPath == "" {
				return fmt.Errorf("observability.journal_path is not configured")
			}
			j, err := store.Open(cmd.Context(), cfg.Observability.JournalPath)
			if err != nil {
				return err
			}
			defer j.Close()
			entries, err := j.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTOOL\tSTATUS\tPOLLS\tRESULT")
			for _, e := range entries {
				result := e.ResultText
				if e.Error != "" {
					result = e.Error
				}
				if e.ArtifactPath != "" {
					result += " [" + e.ArtifactPath + "]"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.StartedAt.Format("2006-01-02 15:04:05"), e.Tool, e.Status, e.Polls, oneLine(result, 80))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
