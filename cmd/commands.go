package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-caption-translator/internal/service"
	"github.com/MimeLyc/contextual-caption-translator/internal/subtitle"
	"github.com/MimeLyc/contextual-caption-translator/pkg/file"
)

func newSegmentCommand(root *rootState) *cobra.Command {
	var (
		lang   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "segment <payload.json>",
		Short: "Split a caption payload into sentence cues without translating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.config(cmd)
			if err != nil {
				return err
			}
			payload, err := subtitle.ReadFile(args[0])
			if err != nil {
				return err
			}

			captions := service.NewCaptionService(cfg, nil, nil)
			res, err := captions.Segment(payload, lang)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			case "srt":
				return subtitle.NewSRTWriter(false).Write(out, res.Cues)
			default:
				return fmt.Errorf("unknown format %q, use json or srt", format)
			}
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "caption language, detected from the text when empty")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or srt")
	return cmd
}

func newTranslateCommand(root *rootState) *cobra.Command {
	var (
		videoID   string
		lang      string
		output    string
		bilingual bool
		retry     bool
		save      bool
	)
	cmd := &cobra.Command{
		Use:   "translate [payload.json]",
		Short: "Segment and translate a caption payload, resuming from the cache",
		Long: `translate runs one translation session in the foreground. Progress is
saved after every batch, so an interrupted run resumes where it stopped
when started again with the same video id. With --retry only the cues
marked as failed are sent again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && videoID == "" {
				return fmt.Errorf("a payload file or --video-id is required")
			}
			cfg, err := root.config(cmd)
			if err != nil {
				return err
			}

			req := service.StartRequest{VideoID: videoID, SourceLang: lang}
			if len(args) == 1 {
				if req.Payload, err = subtitle.ReadFile(args[0]); err != nil {
					return err
				}
				if req.VideoID == "" {
					req.VideoID = file.Stem(args[0])
				}
				if save && output == "" {
					output = file.ReplaceExt(args[0], cfg.Translate.TargetLanguage.String()+".srt")
				}
			}

			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := a.captions.Prepare(ctx, req); err != nil {
				return err
			}
			var runErr error
			if retry {
				runErr = a.captions.RetryFailed(ctx, req.VideoID)
			} else {
				runErr = a.captions.Translate(ctx, req.VideoID)
			}

			status, err := a.captions.Status(ctx, req.VideoID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s, %d/%d translated, %d failed\n",
				status.VideoID, status.State, status.Progress.Done, status.Progress.Total, status.Progress.Failed)

			if err := writeCues(cmd.OutOrStdout(), output, subtitle.NewSRTWriter(bilingual), status.Cues); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&videoID, "video-id", "", "cache key, defaults to the payload file name")
	cmd.Flags().StringVar(&lang, "lang", "", "caption language, detected from the text when empty")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write SubRip to this file instead of stdout")
	cmd.Flags().BoolVar(&bilingual, "bilingual", false, "keep the original line under each translation")
	cmd.Flags().BoolVar(&retry, "retry", false, "only resend cues that failed in an earlier run")
	cmd.Flags().BoolVar(&save, "save", false, "write <payload>.<target>.srt next to the payload")
	return cmd
}

func writeCues(stdout io.Writer, path string, w subtitle.Writer, cues []subtitle.Cue) error {
	if path == "" {
		return w.Write(stdout, cues)
	}
	return subtitle.WriteFile(path, w, cues)
}

func newDiagnoseCommand(root *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Check every configured API key against the first preferred model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			settings, err := a.settings.GetRuntimeSettings()
			if err != nil {
				return err
			}
			if len(settings.Credentials) == 0 {
				return fmt.Errorf("no API key configured, set CCT_API_KEYS or --api-keys")
			}
			results, err := a.dispatcher.Diagnose(cmd.Context(), settings.Credentials)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, r := range results {
				mark := "ok"
				if !r.Valid {
					mark = "FAILED"
					invalid++
				}
				fmt.Fprintf(out, "%-20s %-6s %s\n", r.Name, mark, r.Detail)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d keys failed", invalid, len(results))
			}
			return nil
		},
	}
}

func newLogsCommand(root *rootState) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the recent translation events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.config(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			events := a.store.EventLog()
			if clearAll {
				return events.Clear(cmd.Context())
			}
			entries, err := events.Entries(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s [%s] %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Level, e.Message)
				if e.Detail != "" {
					fmt.Fprintf(out, "    %s\n", e.Detail)
				}
				if e.Remedy != "" {
					fmt.Fprintf(out, "    -> %s\n", e.Remedy)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete every entry")
	return cmd
}
