package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"warden/internal/analyzer"
	"warden/internal/config"
	"warden/internal/directory"
	"warden/internal/services"
)

type analyzeOutput struct {
	File          string          `json:"file"`
	Bytes         int             `json:"bytes"`
	Report        analyzer.Report `json:"report"`
	CanonicalName string          `json:"canonical_name,omitempty"`
	LookupError   string          `json:"lookup_error,omitempty"`
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var lookup bool

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Run the screenshot analyzer on a local image",
		Long: "Run the screenshot analyzer on a local image without contacting the daemon.\n" +
			"Prints every region attempt and the authenticity score so region and\n" +
			"threshold settings can be tuned.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read evidence image: %w", err)
			}

			logger := ctx.cliLogger()
			an, err := analyzer.New(cfg.Analyzer, analyzer.NewTesseract(cfg.Analyzer), logger)
			if err != nil {
				return fmt.Errorf("build analyzer: %w", err)
			}

			out := analyzeOutput{File: path, Bytes: len(data), Report: an.Inspect(cmd.Context(), data)}
			if lookup && out.Report.Result.IsSuccess() {
				entry, err := directory.NewCSV(cfg.Directory.Path, logger).Lookup(cmd.Context(), out.Report.Result.ExtractedID)
				switch {
				case err == nil:
					out.CanonicalName = entry.CanonicalName
				case errors.Is(err, services.ErrNotFound):
					out.LookupError = "not in directory"
				default:
					out.LookupError = err.Error()
				}
			}

			if asJSON {
				return writeJSON(cmd, out)
			}
			renderAnalyzeOutput(cmd, out)
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	cmd.Flags().BoolVar(&lookup, "lookup", true, "Resolve an extracted id against the identity directory")
	return cmd
}

func renderAnalyzeOutput(cmd *cobra.Command, out analyzeOutput) {
	w := cmd.OutOrStdout()
	report := out.Report

	summary := [][2]string{
		{"File", out.File},
		{"Size", humanize.Bytes(uint64(out.Bytes))},
	}
	if report.Format != "" {
		summary = append(summary,
			[2]string{"Format", report.Format},
			[2]string{"Dimensions", fmt.Sprintf("%dx%d", report.Width, report.Height)},
		)
	}
	fmt.Fprint(w, renderKeyValues(summary))

	if len(report.Attempts) > 0 {
		rows := make([][]string, 0, len(report.Attempts))
		for _, attempt := range report.Attempts {
			rows = append(rows, []string{
				attempt.Region,
				truncate(singleLine(attempt.Text), 40),
				attempt.Identifier,
				attempt.Duration.Round(time.Millisecond).String(),
				attempt.Error,
			})
		}
		fmt.Fprint(w, renderTable([]string{"Region", "Text", "Identifier", "Time", "Error"}, rows, nil))
	}

	result := report.Result
	outcome := [][2]string{{"Outcome", string(result.Outcome)}}
	if result.ExtractedID != "" {
		outcome = append(outcome, [2]string{"Identifier", result.ExtractedID})
	}
	if result.Region != "" {
		outcome = append(outcome, [2]string{"Region", result.Region})
	}
	if report.Reference != "" || report.Score > 0 {
		outcome = append(outcome, [2]string{"Authenticity", fmt.Sprintf("%.3f (%s)", report.Score, report.Reference)})
	}
	if result.Detail != "" {
		outcome = append(outcome, [2]string{"Detail", result.Detail})
	}
	if out.CanonicalName != "" {
		outcome = append(outcome, [2]string{"Canonical name", out.CanonicalName})
	}
	if out.LookupError != "" {
		outcome = append(outcome, [2]string{"Directory", out.LookupError})
	}
	fmt.Fprint(w, renderKeyValues(outcome))
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
